// watch polls the transactions API on a fixed cadence and reconciles each
// batch with its retained snapshot, so records that roll out of the server's
// list window stay visible. New records are printed as they appear.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naruebet/tmwatch/internal/models"
	"github.com/naruebet/tmwatch/internal/reconcile"
)

func main() {
	var (
		addr     = flag.String("addr", "http://localhost:8080", "API base URL")
		token    = flag.String("token", "", "bearer access token")
		limit    = flag.Int("limit", 50, "server-side list window")
		interval = flag.Duration("interval", 10*time.Second, "poll cadence")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 10 * time.Second}
	var snapshot []models.Transaction
	known := map[string]models.TransactionStatus{}

	poll := func() {
		fresh, err := fetch(ctx, client, *addr, *token, *limit)
		if err != nil {
			log.Warn("poll failed", "err", err)
			return
		}
		snapshot = reconcile.Merge(snapshot, fresh)
		reconcile.SortNewestFirst(snapshot)

		for i := len(snapshot) - 1; i >= 0; i-- {
			tx := snapshot[i]
			prev, seen := known[tx.ID]
			switch {
			case !seen:
				fmt.Printf("%s  %-24s %10s  %s  %s\n",
					tx.OccurredAt.Local().Format("2006-01-02 15:04:05"),
					tx.ID, tx.Amount.StringFixed(2), tx.Status, tx.Sender)
			case prev != tx.Status:
				fmt.Printf("%s  %-24s status %s -> %s\n",
					time.Now().Format("2006-01-02 15:04:05"), tx.ID, prev, tx.Status)
			}
			known[tx.ID] = tx.Status
		}
	}

	poll()
	t := time.NewTicker(*interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			poll()
		}
	}
}

func fetch(ctx context.Context, client *http.Client, addr, token string, limit int) ([]models.Transaction, error) {
	url := fmt.Sprintf("%s/transactions?limit=%d", addr, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	var out []models.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
