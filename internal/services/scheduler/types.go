package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "github.com/sigmah735-debug/telegrambot/pkg/logx"
)

// Config controls the scheduler service.
type Config struct {
	Workers     int
	HistorySize int
	Timezone    string // IANA TZ, e.g. "Asia/Jakarta"
}

type HistoryItem struct {
	ID       string
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

type task struct {
	id   string
	name string
	run  func(ctx context.Context) error
}

type scheduleDef struct {
	id      string
	name    string
	spec    string
	job     func(ctx context.Context) error
	entryID cron.EntryID
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	queue  chan task
	stopCh chan struct{}

	// one-time timers; onceVer guards against stale callbacks after an
	// upsert replaces a timer with the same name.
	tmu     sync.Mutex
	timers  map[string]*time.Timer
	onceAt  map[string]time.Time
	onceJob map[string]func(ctx context.Context) error
	onceVer map[string]uint64

	hmu     sync.Mutex
	history []HistoryItem

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

type ScheduleInfo struct {
	ID   string
	Name string
	Spec string
	Next time.Time
}

type Snapshot struct {
	Timezone  string
	Workers   int
	QueueLen  int
	Pending   []PendingOnce
	Schedules []ScheduleInfo
	History   []HistoryItem
}

// PendingOnce describes a one-shot job that has not fired yet.
type PendingOnce struct {
	Name string
	At   time.Time
}
