package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

var _ repository.ClientRepository = (*ClientRepo)(nil)

// ClientRepo clientes y prospects por tenant.
type ClientRepo struct {
	q Querier
}

const clientColumns = `id, company_id, name, type, email, phone, address, postal_code, city, country, siren, sector, tags, created_at, updated_at`

func scanClient(row pgx.Row) (*entity.Client, error) {
	var c entity.Client
	if err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Type, &c.Email, &c.Phone, &c.Address, &c.PostalCode,
		&c.City, &c.Country, &c.Siren, &c.Sector, &c.Tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func (r *ClientRepo) Create(ctx context.Context, c *entity.Client) error {
	_, err := r.q.Exec(ctx, `INSERT INTO clients (`+clientColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		c.ID, c.CompanyID, c.Name, c.Type, strings.ToLower(c.Email), c.Phone, c.Address, c.PostalCode,
		c.City, c.Country, c.Siren, c.Sector, tagsOrEmpty(c.Tags), c.CreatedAt, c.UpdatedAt)
	return wrap("insert client", err)
}

func (r *ClientRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Client, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE company_id = $1 AND id = $2`, companyID, id),
		"get client", scanClient)
}

func (r *ClientRepo) GetByEmail(ctx context.Context, companyID, email string) (*entity.Client, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE company_id = $1 AND email = $2
		ORDER BY created_at LIMIT 1`, companyID, strings.ToLower(email)), "get client by email", scanClient)
}

func (r *ClientRepo) GetByPhone(ctx context.Context, companyID, phone string) (*entity.Client, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE company_id = $1 AND phone = $2
		ORDER BY created_at LIMIT 1`, companyID, phone), "get client by phone", scanClient)
}

func (r *ClientRepo) Update(ctx context.Context, c *entity.Client) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE clients SET name=$3, type=$4, email=$5, phone=$6, address=$7, postal_code=$8, city=$9, country=$10,
			siren=$11, sector=$12, tags=$13, updated_at=$14
		WHERE company_id = $1 AND id = $2`,
		c.CompanyID, c.ID, c.Name, c.Type, strings.ToLower(c.Email), c.Phone, c.Address, c.PostalCode, c.City, c.Country,
		c.Siren, c.Sector, tagsOrEmpty(c.Tags), c.UpdatedAt)
	return affected(tag, err, "update client")
}

func (r *ClientRepo) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM clients WHERE company_id = $1 AND id = $2`, companyID, id)
	return affected(tag, err, "delete client")
}

func (r *ClientRepo) List(ctx context.Context, companyID string, f repository.ClientFilter) ([]*entity.Client, int, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add("(name ILIKE ? OR email ILIKE ?)", "%"+escapeLike(s)+"%")
	}
	if f.Type != "" {
		w.add("type = ?", f.Type)
	}
	total, err := count(ctx, r.q, "count clients", `SELECT count(*) FROM clients`+w.sql(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + clientColumns + ` FROM clients` + w.sql() + ` ORDER BY name` + w.page(f.Limit, f.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	list, err := collect(rows, err, "list clients", scanClient)
	return list, total, err
}

func (r *ClientRepo) CountByCompany(ctx context.Context, companyID string) (int, error) {
	return count(ctx, r.q, "count clients", `SELECT count(*) FROM clients WHERE company_id = $1`, companyID)
}

func (r *ClientRepo) DeleteByCompany(ctx context.Context, companyID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM clients WHERE company_id = $1`, companyID)
	return wrap("delete clients", err)
}
