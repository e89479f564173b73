package memstore

import (
	"context"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

type companyRepo struct{ s *Store }

func (r companyRepo) Create(_ context.Context, c *entity.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.companies {
		if e.Code == c.Code {
			return domain.ErrDuplicate
		}
	}
	r.s.companies[c.ID] = *c
	return nil
}

func (r companyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r companyRepo) GetByCode(_ context.Context, code string) (*entity.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.companies {
		if c.Code == code {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (r companyRepo) Update(_ context.Context, c *entity.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.companies[c.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.companies[c.ID] = *c
	return nil
}

func (r companyRepo) GetSettings(_ context.Context, companyID string) (*entity.CompanySettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.settings[companyID]
	if !ok {
		st = entity.DefaultCompanySettings(companyID)
	}
	st.Normalize()
	return &st, nil
}

func (r companyRepo) SaveSettings(_ context.Context, st *entity.CompanySettings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st.UpdatedAt = time.Now()
	r.s.settings[st.CompanyID] = *st
	return nil
}

type subscriptionRepo struct{ s *Store }

func (r subscriptionRepo) GetByCompany(_ context.Context, companyID string) (*entity.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subscriptions[companyID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r subscriptionRepo) Upsert(_ context.Context, sub *entity.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.subscriptions[sub.CompanyID] = *sub
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.users {
		if e.Email == u.Email {
			return domain.ErrDuplicate
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r userRepo) Update(_ context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) ListByCompany(_ context.Context, companyID string) ([]*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.User
	for _, u := range r.s.users {
		if u.CompanyID == companyID {
			u := u
			out = append(out, &u)
		}
	}
	return out, nil
}

func (r userRepo) CountByCompany(ctx context.Context, companyID string) (int, error) {
	list, err := r.ListByCompany(ctx, companyID)
	return len(list), err
}

func (r userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.users, id)
	return nil
}

func (r userRepo) ListDeletionDue(_ context.Context, now time.Time) ([]*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.User
	for _, u := range r.s.users {
		if u.DeletionDue(now) {
			u := u
			out = append(out, &u)
		}
	}
	return out, nil
}

type clientRepo struct{ s *Store }

func (r clientRepo) Create(_ context.Context, c *entity.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.clients[c.ID] = *c
	return nil
}

func (r clientRepo) GetByID(_ context.Context, companyID, id string) (*entity.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok || c.CompanyID != companyID {
		return nil, nil
	}
	return &c, nil
}

func (r clientRepo) find(companyID string, match func(c entity.Client) bool) *entity.Client {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.clients {
		if c.CompanyID == companyID && match(c) {
			c := c
			return &c
		}
	}
	return nil
}

func (r clientRepo) GetByEmail(_ context.Context, companyID, email string) (*entity.Client, error) {
	return r.find(companyID, func(c entity.Client) bool { return email != "" && c.Email == email }), nil
}

func (r clientRepo) GetByPhone(_ context.Context, companyID, phone string) (*entity.Client, error) {
	return r.find(companyID, func(c entity.Client) bool { return phone != "" && c.Phone == phone }), nil
}

func (r clientRepo) Update(_ context.Context, c *entity.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.clients[c.ID]; !ok || e.CompanyID != c.CompanyID {
		return domain.ErrNotFound
	}
	r.s.clients[c.ID] = *c
	return nil
}

func (r clientRepo) Delete(_ context.Context, companyID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.clients[id]; !ok || e.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(r.s.clients, id)
	return nil
}

func (r clientRepo) List(_ context.Context, companyID string, f repository.ClientFilter) ([]*entity.Client, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Client
	for _, c := range r.s.clients {
		if c.CompanyID != companyID || (f.Type != "" && c.Type != f.Type) {
			continue
		}
		if f.Search != "" && !containsFold(c.Name, f.Search) && !containsFold(c.Email, f.Search) {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sortByCreated(out, func(c *entity.Client) int64 { return c.CreatedAt.UnixNano() })
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r clientRepo) CountByCompany(_ context.Context, companyID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.clients {
		if c.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

func (r clientRepo) DeleteByCompany(_ context.Context, companyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.clients {
		if c.CompanyID == companyID {
			delete(r.s.clients, id)
		}
	}
	return nil
}
