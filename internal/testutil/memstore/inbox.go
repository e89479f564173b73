package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

type conversationRepo struct{ s *Store }

func (r conversationRepo) Create(_ context.Context, c *entity.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.conversations[c.ID] = *c
	return nil
}

func (r conversationRepo) GetByID(_ context.Context, companyID, id string) (*entity.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok || c.CompanyID != companyID {
		return nil, nil
	}
	return &c, nil
}

func (r conversationRepo) Update(_ context.Context, c *entity.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.conversations[c.ID]
	if !ok || e.CompanyID != c.CompanyID {
		return domain.ErrNotFound
	}
	cp := *c
	// auto_reply_sent solo cambia por MarkAutoReplySent.
	cp.AutoReplySent = e.AutoReplySent
	r.s.conversations[c.ID] = cp
	return nil
}

func (r conversationRepo) List(_ context.Context, companyID string, f repository.ConversationFilter) ([]*entity.Conversation, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Conversation
	for _, c := range r.s.conversations {
		switch {
		case c.CompanyID != companyID,
			f.FolderID != "" && c.FolderID != f.FolderID,
			f.Status != "" && c.Status != f.Status,
			f.Source != "" && c.Source != f.Source,
			f.UnreadOnly && c.UnreadCount == 0,
			f.Search != "" && !containsFold(c.Subject, f.Search):
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r conversationRepo) latest(match func(c entity.Conversation) bool) *entity.Conversation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *entity.Conversation
	for _, c := range r.s.conversations {
		if match(c) && (best == nil || c.LastMessageAt.After(best.LastMessageAt)) {
			c := c
			best = &c
		}
	}
	return best
}

func (r conversationRepo) FindEmailThread(_ context.Context, companyID, subject string) (*entity.Conversation, error) {
	return r.latest(func(c entity.Conversation) bool {
		return c.CompanyID == companyID && c.Source == entity.SourceEmail && c.Subject == subject
	}), nil
}

func (r conversationRepo) FindByClientSource(_ context.Context, companyID, clientID, source string) (*entity.Conversation, error) {
	return r.latest(func(c entity.Conversation) bool {
		return c.CompanyID == companyID && c.ClientID == clientID && c.Source == source
	}), nil
}

func (r conversationRepo) FindByExternalThread(_ context.Context, companyID, source, threadID string) (*entity.Conversation, error) {
	return r.latest(func(c entity.Conversation) bool {
		return c.CompanyID == companyID && c.Source == source && threadID != "" && c.ExternalThreadID == threadID
	}), nil
}

func (r conversationRepo) MarkAutoReplySent(_ context.Context, companyID, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok || c.CompanyID != companyID || c.AutoReplySent {
		return false, nil
	}
	c.AutoReplySent = true
	c.AutoReplyPending = false
	c.AutoReplyDueAt = nil
	r.s.conversations[id] = c
	return true, nil
}

func (r conversationRepo) ListAutoReplyDue(_ context.Context, now time.Time) ([]*entity.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Conversation
	for _, c := range r.s.conversations {
		if !c.AutoReplySent && c.AutoReplyDueAt != nil && !c.AutoReplyDueAt.After(now) {
			c := c
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r conversationRepo) ListUnclassified(_ context.Context, companyID string, limit int) ([]*entity.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Conversation
	for _, c := range r.s.conversations {
		if c.CompanyID == companyID && c.FolderID == "" && !c.AIClassified {
			c := c
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageAt.Before(out[j].LastMessageAt) })
	return page(out, limit, 0), nil
}

func (r conversationRepo) ListForStatusSweep(_ context.Context) ([]*entity.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Conversation
	for _, c := range r.s.conversations {
		if c.Status != entity.ConversationArchived && c.Status != entity.ConversationSpam {
			c := c
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r conversationRepo) DeleteByCompany(_ context.Context, companyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.conversations {
		if c.CompanyID == companyID {
			delete(r.s.conversations, id)
		}
	}
	kept := r.s.messages[:0]
	for _, m := range r.s.messages {
		if m.CompanyID != companyID {
			kept = append(kept, m)
		}
	}
	r.s.messages = kept
	return nil
}

func (r conversationRepo) AddMessage(_ context.Context, m *entity.InboxMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ExternalID != "" {
		for _, e := range r.s.messages {
			if e.ExternalID == m.ExternalID {
				return domain.ErrDuplicate
			}
		}
	}
	r.s.messages = append(r.s.messages, *m)
	return nil
}

func (r conversationRepo) MessageExists(_ context.Context, companyID, externalID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.messages {
		if m.CompanyID == companyID && m.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (r conversationRepo) ListMessages(_ context.Context, companyID, conversationID string) ([]*entity.InboxMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.InboxMessage
	for _, m := range r.s.messages {
		if m.CompanyID == companyID && m.ConversationID == conversationID {
			m := m
			out = append(out, &m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

func (r conversationRepo) MarkMessagesRead(_ context.Context, companyID, conversationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.messages {
		if r.s.messages[i].CompanyID == companyID && r.s.messages[i].ConversationID == conversationID {
			r.s.messages[i].Read = true
		}
	}
	return nil
}

func (r conversationRepo) ClientRepliedAfter(_ context.Context, companyID, clientID string, after time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.messages {
		if m.CompanyID != companyID || !m.IsFromClient || !m.SentAt.After(after) {
			continue
		}
		if c, ok := r.s.conversations[m.ConversationID]; ok && c.ClientID == clientID {
			return true, nil
		}
	}
	return false, nil
}

type folderRepo struct{ s *Store }

func (r folderRepo) Create(_ context.Context, f *entity.InboxFolder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.folders[f.ID] = *f
	return nil
}

func (r folderRepo) GetByID(_ context.Context, companyID, id string) (*entity.InboxFolder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.folders[id]
	if !ok || f.CompanyID != companyID {
		return nil, nil
	}
	return &f, nil
}

func (r folderRepo) Update(_ context.Context, f *entity.InboxFolder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.folders[f.ID]; !ok || e.CompanyID != f.CompanyID {
		return domain.ErrNotFound
	}
	r.s.folders[f.ID] = *f
	return nil
}

func (r folderRepo) Delete(_ context.Context, companyID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.folders[id]; !ok || e.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(r.s.folders, id)
	for cid, c := range r.s.conversations {
		if c.FolderID == id {
			c.FolderID = ""
			r.s.conversations[cid] = c
		}
	}
	return nil
}

func (r folderRepo) ListByCompany(_ context.Context, companyID string) ([]entity.InboxFolder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.InboxFolder
	for _, f := range r.s.folders {
		if f.CompanyID == companyID {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type integrationRepo struct{ s *Store }

func (r integrationRepo) Create(_ context.Context, i *entity.InboxIntegration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.integrations[i.ID] = *i
	return nil
}

func (r integrationRepo) GetByID(_ context.Context, companyID, id string) (*entity.InboxIntegration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.integrations[id]
	if !ok || i.CompanyID != companyID {
		return nil, nil
	}
	return &i, nil
}

func (r integrationRepo) Update(_ context.Context, i *entity.InboxIntegration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.integrations[i.ID]; !ok || e.CompanyID != i.CompanyID {
		return domain.ErrNotFound
	}
	r.s.integrations[i.ID] = *i
	return nil
}

func (r integrationRepo) Delete(_ context.Context, companyID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.integrations[id]; !ok || e.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(r.s.integrations, id)
	return nil
}

func (r integrationRepo) filter(match func(i entity.InboxIntegration) bool) []*entity.InboxIntegration {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.InboxIntegration
	for _, i := range r.s.integrations {
		if match(i) {
			i := i
			out = append(out, &i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

func (r integrationRepo) ListByCompany(_ context.Context, companyID string) ([]*entity.InboxIntegration, error) {
	return r.filter(func(i entity.InboxIntegration) bool { return i.CompanyID == companyID }), nil
}

func (r integrationRepo) ListActive(_ context.Context) ([]*entity.InboxIntegration, error) {
	return r.filter(func(i entity.InboxIntegration) bool { return i.IsActive }), nil
}

func (r integrationRepo) GetPrimary(_ context.Context, companyID, kind string) (*entity.InboxIntegration, error) {
	list := r.filter(func(i entity.InboxIntegration) bool {
		return i.CompanyID == companyID && i.Kind == kind && i.IsActive
	})
	for _, i := range list {
		if i.IsPrimary {
			return i, nil
		}
	}
	if len(list) > 0 {
		return list[0], nil
	}
	return nil, nil
}

func (r integrationRepo) FindByAddress(_ context.Context, kind, address string) (*entity.InboxIntegration, error) {
	list := r.filter(func(i entity.InboxIntegration) bool {
		return i.Kind == kind && i.IsActive && i.AccountAddress == address
	})
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r integrationRepo) UpdateSyncStatus(_ context.Context, id string, at time.Time, status, errMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	t := at
	i.LastSyncAt, i.LastSyncStatus, i.LastSyncError = &t, status, errMsg
	r.s.integrations[id] = i
	return nil
}
