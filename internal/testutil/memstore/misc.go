package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

type followUpRepo struct{ s *Store }

func (r followUpRepo) Create(_ context.Context, f *entity.FollowUp) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.followUps[f.ID] = *f
	return nil
}

func (r followUpRepo) GetByID(_ context.Context, companyID, id string) (*entity.FollowUp, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.followUps[id]
	if !ok || f.CompanyID != companyID {
		return nil, nil
	}
	return &f, nil
}

func (r followUpRepo) Update(_ context.Context, f *entity.FollowUp) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.followUps[f.ID]; !ok || e.CompanyID != f.CompanyID {
		return domain.ErrNotFound
	}
	r.s.followUps[f.ID] = *f
	return nil
}

func (r followUpRepo) Delete(_ context.Context, companyID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.followUps[id]; !ok || e.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(r.s.followUps, id)
	return nil
}

func (r followUpRepo) List(_ context.Context, companyID string, f repository.FollowUpFilter) ([]*entity.FollowUp, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.FollowUp
	for _, fu := range r.s.followUps {
		switch {
		case fu.CompanyID != companyID,
			f.Status != "" && fu.Status != f.Status,
			f.ClientID != "" && fu.ClientID != f.ClientID,
			f.SourceType != "" && fu.SourceType != f.SourceType,
			f.DueFrom != nil && fu.DueDate.Before(*f.DueFrom),
			f.DueTo != nil && !fu.DueDate.Before(*f.DueTo):
			continue
		}
		fu := fu
		out = append(out, &fu)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r followUpRepo) ListDue(_ context.Context, now time.Time) ([]*entity.FollowUp, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.FollowUp
	for _, f := range r.s.followUps {
		if !f.AutoEnabled || !f.Open() || f.DueDate.After(now) {
			continue
		}
		if f.NextAttemptAt != nil && f.NextAttemptAt.After(now) {
			continue
		}
		f := f
		out = append(out, &f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (r followUpRepo) AddHistory(_ context.Context, h *entity.FollowUpHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r followUpRepo) ListHistory(_ context.Context, companyID, followUpID string) ([]entity.FollowUpHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.FollowUpHistory
	for _, h := range r.s.history {
		if h.CompanyID == companyID && h.FollowUpID == followUpID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r followUpRepo) CountSent(_ context.Context, followUpID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, h := range r.s.history {
		if h.FollowUpID == followUpID && h.Status == entity.HistorySent {
			n++
		}
	}
	return n, nil
}

func (r followUpRepo) CountSentSince(_ context.Context, companyID string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, h := range r.s.history {
		if h.CompanyID == companyID && h.Status == entity.HistorySent && !h.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r followUpRepo) DeleteByCompany(_ context.Context, companyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, f := range r.s.followUps {
		if f.CompanyID == companyID {
			delete(r.s.followUps, id)
		}
	}
	return nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *entity.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r notificationRepo) CreateDeduped(_ context.Context, n *entity.Notification) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.DedupeDay != nil {
		for _, e := range r.s.notifications {
			if e.CompanyID == n.CompanyID && e.SourceType == n.SourceType && e.SourceID == n.SourceID &&
				e.Type == n.Type && e.DedupeDay != nil && e.DedupeDay.Equal(*n.DedupeDay) {
				return false, nil
			}
		}
	}
	r.s.notifications = append(r.s.notifications, *n)
	return true, nil
}

func visible(n entity.Notification, companyID, userID string) bool {
	return n.CompanyID == companyID && (n.UserID == "" || n.UserID == userID)
}

func (r notificationRepo) List(_ context.Context, companyID, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Notification
	for _, n := range r.s.notifications {
		if visible(n, companyID, userID) && (!unreadOnly || !n.Read) {
			n := n
			out = append(out, &n)
		}
	}
	sortByCreated(out, func(n *entity.Notification) int64 { return n.CreatedAt.UnixNano() })
	return page(out, limit, offset), nil
}

func (r notificationRepo) UnreadCount(_ context.Context, companyID, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := 0
	for _, n := range r.s.notifications {
		if visible(n, companyID, userID) && !n.Read {
			c++
		}
	}
	return c, nil
}

func (r notificationRepo) MarkRead(_ context.Context, companyID, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.notifications {
		n := &r.s.notifications[i]
		if n.ID == id && visible(*n, companyID, userID) {
			now := time.Now()
			n.Read, n.ReadAt = true, &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r notificationRepo) MarkAllRead(_ context.Context, companyID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for i := range r.s.notifications {
		n := &r.s.notifications[i]
		if visible(*n, companyID, userID) && !n.Read {
			n.Read, n.ReadAt = true, &now
		}
	}
	return nil
}

type taskRepo struct{ s *Store }

func (r taskRepo) Create(_ context.Context, t *entity.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tasks[t.ID] = *t
	return nil
}

func (r taskRepo) GetByID(_ context.Context, companyID, id string) (*entity.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || t.CompanyID != companyID {
		return nil, nil
	}
	return &t, nil
}

func (r taskRepo) Update(_ context.Context, t *entity.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.tasks[t.ID]; !ok || e.CompanyID != t.CompanyID {
		return domain.ErrNotFound
	}
	r.s.tasks[t.ID] = *t
	return nil
}

func (r taskRepo) Delete(_ context.Context, companyID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.tasks[id]; !ok || e.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r taskRepo) filter(match func(t entity.Task) bool) []*entity.Task {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Task
	for _, t := range r.s.tasks {
		if match(t) {
			t := t
			out = append(out, &t)
		}
	}
	sortByCreated(out, func(t *entity.Task) int64 { return t.CreatedAt.UnixNano() })
	return out
}

func (r taskRepo) List(_ context.Context, companyID string) ([]*entity.Task, error) {
	return r.filter(func(t entity.Task) bool { return t.CompanyID == companyID }), nil
}

func (r taskRepo) ListOverdue(_ context.Context, day time.Time) ([]*entity.Task, error) {
	return r.filter(func(t entity.Task) bool {
		return t.Status != entity.TaskStatusDone && t.DueDate != nil && t.DueDate.Before(day)
	}), nil
}

func (r taskRepo) ListOpenCritical(_ context.Context) ([]*entity.Task, error) {
	return r.filter(func(t entity.Task) bool {
		return t.Status != entity.TaskStatusDone && t.Priority == entity.TaskPriorityCritical
	}), nil
}

func (r taskRepo) DeleteByCompany(_ context.Context, companyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, t := range r.s.tasks {
		if t.CompanyID == companyID {
			delete(r.s.tasks, id)
		}
	}
	return nil
}

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Create(_ context.Context, a *entity.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.appointments[a.ID] = *a
	return nil
}

func (r appointmentRepo) GetByID(_ context.Context, companyID, id string) (*entity.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok || a.CompanyID != companyID {
		return nil, nil
	}
	return &a, nil
}

func (r appointmentRepo) Update(_ context.Context, a *entity.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.appointments[a.ID]; !ok || e.CompanyID != a.CompanyID {
		return domain.ErrNotFound
	}
	r.s.appointments[a.ID] = *a
	return nil
}

func (r appointmentRepo) Delete(_ context.Context, companyID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.appointments[id]; !ok || e.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(r.s.appointments, id)
	return nil
}

func (r appointmentRepo) filter(match func(a entity.Appointment) bool) []*entity.Appointment {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Appointment
	for _, a := range r.s.appointments {
		if match(a) {
			a := a
			out = append(out, &a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}

func (r appointmentRepo) List(_ context.Context, companyID string, from, to time.Time) ([]*entity.Appointment, error) {
	return r.filter(func(a entity.Appointment) bool {
		return a.CompanyID == companyID && !a.StartsAt.Before(from) && a.StartsAt.Before(to)
	}), nil
}

func (r appointmentRepo) ListStartingBetween(_ context.Context, from, to time.Time) ([]*entity.Appointment, error) {
	return r.filter(func(a entity.Appointment) bool { return !a.StartsAt.Before(from) && a.StartsAt.Before(to) }), nil
}

func (r appointmentRepo) DeleteByCompany(_ context.Context, companyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, a := range r.s.appointments {
		if a.CompanyID == companyID {
			delete(r.s.appointments, id)
		}
	}
	return nil
}
