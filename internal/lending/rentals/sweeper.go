package rentals

import (
	"context"
	"log"
	"time"
)

// Sweeper 期限切れ貸出を定期的にクローズするバックグラウンドループ。
// 1回分の処理は Service.SweepOverdue に全部寄せてあり、ここは起動タイミングだけ持つ。
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{svc: svc, interval: interval}
}

// Run ctx がキャンセルされるまで回り続ける。goroutineで呼ぶ。
func (w *Sweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		log.Println("[INFO] rental sweeper disabled")
		return
	}

	log.Printf("[INFO] rental sweeper started (interval=%s)", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// 起動直後にも1回流す（再起動の間に溜まった期限切れを回収）
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[INFO] rental sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	affected, err := w.svc.SweepOverdue(ctx)
	if err != nil {
		log.Printf("[WARN] overdue sweep failed: %v", err)
		return
	}
	if len(affected) > 0 {
		log.Printf("[INFO] overdue sweep closed %d rentals", len(affected))
	}
}
