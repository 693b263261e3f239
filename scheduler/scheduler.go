// Package scheduler 维护进程内的周期任务注册表。调度器是组合根持有的显式
// 实例，任务失败只记录、不传播，也不会影响其他任务的节奏。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sylvexn/nexus/logger"
)

var ErrUnsupportedRecurrence = errors.New("不支持的调度规则")

type recurrenceKind int

const (
	kindInvalid recurrenceKind = iota
	kindDailyAt
	kindHourly
	kindEveryNMinutes
)

// Recurrence 封闭的周期规则集合：每日定点、每小时整点、每 N 分钟。
type Recurrence struct {
	kind    recurrenceKind
	hour    int
	minutes int
}

func DailyAt(hour int) Recurrence {
	return Recurrence{kind: kindDailyAt, hour: hour}
}

func Hourly() Recurrence {
	return Recurrence{kind: kindHourly}
}

func EveryNMinutes(n int) Recurrence {
	return Recurrence{kind: kindEveryNMinutes, minutes: n}
}

func (r Recurrence) validate() error {
	switch r.kind {
	case kindDailyAt:
		if r.hour < 0 || r.hour > 23 {
			return fmt.Errorf("%w: 小时 %d 超出范围", ErrUnsupportedRecurrence, r.hour)
		}
	case kindHourly:
	case kindEveryNMinutes:
		if r.minutes <= 0 {
			return fmt.Errorf("%w: 间隔 %d 分钟不合法", ErrUnsupportedRecurrence, r.minutes)
		}
	default:
		return ErrUnsupportedRecurrence
	}
	return nil
}

// Next 计算 now 之后的下一次运行时间。
func (r Recurrence) Next(now time.Time) time.Time {
	switch r.kind {
	case kindDailyAt:
		candidate := time.Date(now.Year(), now.Month(), now.Day(), r.hour, 0, 0, 0, now.Location())
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate
	case kindHourly:
		return now.Truncate(time.Hour).Add(time.Hour)
	case kindEveryNMinutes:
		return now.Add(time.Duration(r.minutes) * time.Minute)
	default:
		return now.Add(time.Hour)
	}
}

func (r Recurrence) String() string {
	switch r.kind {
	case kindDailyAt:
		return fmt.Sprintf("daily@%02d:00", r.hour)
	case kindHourly:
		return "hourly"
	case kindEveryNMinutes:
		return fmt.Sprintf("every %dm", r.minutes)
	default:
		return "invalid"
	}
}

type Handler func(ctx context.Context) error

type JobStatus struct {
	Name       string    `json:"name"`
	Recurrence string    `json:"recurrence"`
	Enabled    bool      `json:"enabled"`
	LastRun    time.Time `json:"last_run"`
	LastError  string    `json:"last_error,omitempty"`
	NextRun    time.Time `json:"next_run"`
}

type job struct {
	name       string
	recurrence Recurrence
	handler    Handler

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	nextRun time.Time
}

type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{jobs: map[string]*job{}}
}

// Register 注册命名任务，重复名称或不合法的规则返回错误。
func (s *Scheduler) Register(name string, r Recurrence, h Handler) error {
	if err := r.validate(); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("任务 %s 缺少处理函数", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("任务 %s 已注册", name)
	}
	s.jobs[name] = &job{name: name, recurrence: r, handler: h}
	s.order = append(s.order, name)
	return nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, j)
	}
	logger.Infof("调度器启动, 共 %d 个任务", len(s.jobs))
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	logger.Infof("调度器已停止")
}

func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	running := s.running
	names := append([]string(nil), s.order...)
	s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(names))
	for _, name := range names {
		s.mu.Lock()
		j := s.jobs[name]
		s.mu.Unlock()

		j.mu.Lock()
		status := JobStatus{
			Name:       j.name,
			Recurrence: j.recurrence.String(),
			Enabled:    running,
			LastRun:    j.lastRun,
			NextRun:    j.nextRun,
		}
		if j.lastErr != nil {
			status.LastError = j.lastErr.Error()
		}
		j.mu.Unlock()
		statuses = append(statuses, status)
	}
	return statuses
}

// runLoop 每次触发后立刻重新计算下一次时间并重新武装定时器，
// 无论本次执行成功与否。
func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	defer s.wg.Done()

	for {
		next := j.recurrence.Next(time.Now())
		j.mu.Lock()
		j.nextRun = next
		j.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.runJob(ctx, j)
	}
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	defer func() {
		if r := recover(); r != nil {
			j.mu.Lock()
			j.lastErr = fmt.Errorf("panic: %v", r)
			j.mu.Unlock()
			logger.Warnf("任务 %s panic: %v", j.name, r)
		}
	}()

	err := j.handler(ctx)

	j.mu.Lock()
	j.lastRun = time.Now()
	j.lastErr = err
	j.mu.Unlock()

	if err != nil {
		logger.Warnf("任务 %s 执行失败: %v", j.name, err)
	} else {
		logger.Debugf("任务 %s 执行完成", j.name)
	}
}
