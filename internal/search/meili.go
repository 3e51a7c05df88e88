package search

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxItemNames    = "journal_item_names"
	idxItemContents = "journal_item_contents"
)

type nameDocument struct {
	ID       string   `json:"id"`
	ItemID   string   `json:"itemId"`
	GroupIDs []string `json:"groupIds"`
	Name     string   `json:"name"`
}

type contentDocument struct {
	ID       string   `json:"id"`
	ItemID   string   `json:"itemId"`
	GroupIDs []string `json:"groupIds"`
	Text     string   `json:"text"`
}

// Meili implements Indexer via Meilisearch. Index writes run on their own
// goroutines; failures are logged and never propagate to the mutation that
// triggered them.
type Meili struct {
	client  meili.ServiceManager
	logger  *slog.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the indexes. The
// returned indexer keeps working (as a no-op) while the backend is down and
// recovers when it comes back.
func NewMeili(logger *slog.Logger, url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logger.Warn("meilisearch unavailable, indexing disabled until it recovers", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{uid: idxItemNames, filterable: []string{"itemId", "groupIds"}, searchable: []string{"name"}},
		{uid: idxItemContents, filterable: []string{"itemId", "groupIds"}, searchable: []string{"text"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idx.uid, PrimaryKey: "id"}); err != nil {
			m.logger.Debug("create index (may already exist)", "index", idx.uid, "error", err)
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn("update filterable attributes", "index", idx.uid, "error", err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.logger.Warn("update searchable attributes", "index", idx.uid, "error", err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

func (m *Meili) IndexName(ctx context.Context, itemID uuid.UUID, groupIDs []uuid.UUID, name string) {
	if !m.healthy.Load() {
		return
	}
	doc := nameDocument{
		ID:       itemID.String(),
		ItemID:   itemID.String(),
		GroupIDs: uuidStrings(groupIDs),
		Name:     name,
	}
	go func() {
		if _, err := m.client.Index(idxItemNames).AddDocuments([]nameDocument{doc}, nil); err != nil {
			m.logger.Warn("index item name", "item", doc.ItemID, "error", err)
		}
	}()
}

func (m *Meili) IndexContent(ctx context.Context, itemID uuid.UUID, groupIDs []uuid.UUID, text string) {
	if !m.healthy.Load() {
		return
	}
	doc := contentDocument{
		ID:       itemID.String(),
		ItemID:   itemID.String(),
		GroupIDs: uuidStrings(groupIDs),
		Text:     text,
	}
	go func() {
		if _, err := m.client.Index(idxItemContents).AddDocuments([]contentDocument{doc}, nil); err != nil {
			m.logger.Warn("index item content", "item", doc.ItemID, "error", err)
		}
	}()
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
