package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain/inbox"
)

var _ ports.MailFetcher = (*IMAPFetcher)(nil)

const (
	imapDialTimeout = 30 * time.Second
	imapMailbox     = "INBOX"
)

// IMAPFetcher lee los mensajes UNSEEN del INBOX. Al descargar BODY[] el servidor los marca \Seen.
type IMAPFetcher struct {
	log zerolog.Logger
}

func NewIMAPFetcher(log zerolog.Logger) *IMAPFetcher {
	return &IMAPFetcher{log: log}
}

// FetchUnseen devuelve como mucho max mensajes, los más antiguos primero.
func (f *IMAPFetcher) FetchUnseen(ctx context.Context, acc ports.IMAPAccount, max int) ([]inbox.InboundMessage, error) {
	c, err := dial(acc)
	if err != nil {
		return nil, err
	}
	// go-imap v1 no acepta context: cortar la conexión si vence.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Terminate()
		case <-stop:
		}
	}()
	defer func() { _ = c.Logout() }()

	if err := c.Login(acc.Username, acc.Password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(imapMailbox, false); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", imapMailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if max > 0 && len(uids) > max {
		uids = uids[:max]
	}

	seq := new(imap.SeqSet)
	seq.AddNum(uids...)
	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seq, items, ch) }()

	var out []inbox.InboundMessage
	for m := range ch {
		body := m.GetBody(section)
		if body == nil {
			continue
		}
		parsed, err := ParseMessage(body)
		if err != nil {
			f.log.Warn().Err(err).Uint32("uid", m.Uid).Msg("imap: mensaje ilegible, ignorado")
			continue
		}
		if parsed.ExternalID == "" {
			parsed.ExternalID = "imap-uid-" + strconv.FormatUint(uint64(m.Uid), 10)
		}
		out = append(out, parsed)
	}
	if err := <-done; err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, fmt.Errorf("imap fetch: %w", err)
	}
	return out, nil
}

func dial(acc ports.IMAPAccount) (*client.Client, error) {
	port := acc.Port
	if port == 0 {
		port = 993
		if !acc.UseSSL {
			port = 143
		}
	}
	addr := net.JoinHostPort(acc.Host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: imapDialTimeout}
	tlsCfg := &tls.Config{ServerName: acc.Host, MinVersion: tls.VersionTLS12}

	if acc.UseSSL {
		c, err := client.DialWithDialerTLS(dialer, addr, tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("imap dial %s: %w", addr, err)
		}
		return c, nil
	}
	c, err := client.DialWithDialer(dialer, addr)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	if ok, _ := c.SupportStartTLS(); ok {
		if err := c.StartTLS(tlsCfg); err != nil {
			_ = c.Logout()
			return nil, fmt.Errorf("imap starttls: %w", err)
		}
	}
	return c, nil
}
