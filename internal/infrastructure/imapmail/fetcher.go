package imapmail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"EmailAutomation/internal/config"
	"EmailAutomation/internal/domain"
	"EmailAutomation/internal/ports"
)

// Fetcher polls an IMAP INBOX for unseen messages. Messages are marked \Seen
// at the source once fetched, and additionally deduplicated by Message-ID
// against the repository so restarts never reprocess mail.
type Fetcher struct {
	cfg    config.IMAPConfig
	repo   ports.Repository
	logger *slog.Logger

	mu     sync.Mutex
	client *imapclient.Client
	known  map[string]struct{}
}

var _ ports.Fetcher = (*Fetcher)(nil)

func NewFetcher(cfg config.IMAPConfig, repo ports.Repository, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		repo:   repo,
		logger: logger,
		known:  make(map[string]struct{}),
	}
}

// Poll returns the unseen messages currently in the INBOX, oldest first.
// A transport error drops the connection so the next poll reconnects.
func (f *Fetcher) Poll(ctx context.Context) ([]domain.EmailMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.connectLocked(); err != nil {
		return nil, err
	}

	searchData, err := f.client.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		f.dropLocked()
		return nil, fmt.Errorf("search unseen: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSetNum(uids...)
	buffers, err := f.client.Fetch(uidSet, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{{}},
	}).Collect()
	if err != nil {
		f.dropLocked()
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var messages []domain.EmailMessage
	for _, buf := range buffers {
		raw := buf.FindBodySection(&imap.FetchItemBodySection{})
		if len(raw) == 0 {
			continue
		}
		msg, err := parseMessage(raw)
		if err != nil {
			f.logger.Warn("skipping unparseable message", "uid", buf.UID, "error", err)
			continue
		}
		if _, seen := f.known[msg.MessageID]; seen {
			continue
		}
		messages = append(messages, msg)
	}

	messages = f.filterProcessed(ctx, messages)
	for _, m := range messages {
		f.known[m.MessageID] = struct{}{}
	}

	storeCmd := f.client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		f.logger.Warn("marking messages seen", "error", err)
	}

	return messages, nil
}

// filterProcessed drops messages already recorded in the repository.
func (f *Fetcher) filterProcessed(ctx context.Context, messages []domain.EmailMessage) []domain.EmailMessage {
	if f.repo == nil || len(messages) == 0 {
		return messages
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.MessageID)
	}

	seen, err := f.repo.Seen(ctx, ids)
	if err != nil {
		f.logger.Warn("dedup lookup failed, keeping all messages", "error", err)
		return messages
	}

	fresh := messages[:0]
	for _, m := range messages {
		if seen[m.MessageID] {
			continue
		}
		fresh = append(fresh, m)
	}
	return fresh
}

// Ping verifies the connection with a NOOP, reconnecting first if needed.
func (f *Fetcher) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.connectLocked(); err != nil {
		return err
	}
	if err := f.client.Noop().Wait(); err != nil {
		f.dropLocked()
		return fmt.Errorf("imap noop: %w", err)
	}
	return nil
}

// Close logs out and releases the connection.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client == nil {
		return nil
	}
	err := f.client.Logout().Wait()
	f.dropLocked()
	if err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}

func (f *Fetcher) connectLocked() error {
	if f.client != nil {
		return nil
	}

	var (
		c   *imapclient.Client
		err error
	)
	if f.cfg.UseSSL {
		c, err = imapclient.DialTLS(f.cfg.Addr(), &imapclient.Options{})
	} else {
		c, err = imapclient.DialInsecure(f.cfg.Addr(), &imapclient.Options{})
	}
	if err != nil {
		return fmt.Errorf("dial imap %s: %w", f.cfg.Addr(), err)
	}

	if err := c.Login(f.cfg.Email, f.cfg.Password).Wait(); err != nil {
		_ = c.Close()
		return fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select("INBOX", nil).Wait(); err != nil {
		_ = c.Close()
		return fmt.Errorf("select inbox: %w", err)
	}

	f.client = c
	f.logger.Info("imap connected", "host", f.cfg.Host)
	return nil
}

func (f *Fetcher) dropLocked() {
	if f.client != nil {
		_ = f.client.Close()
		f.client = nil
	}
}
