// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/pkg/types/errs"
	"github.com/google/uuid"
)

// Transactor runs f directly; Calls counts invocations.
type Transactor struct {
	mu    sync.Mutex
	Calls int
}

func (t *Transactor) WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	t.mu.Lock()
	t.Calls++
	t.mu.Unlock()

	return f(ctx)
}

type Payments struct {
	mu   sync.Mutex
	rows map[uuid.UUID]entity.Payment

	CreateErr error
	UpdateErr error
	Updates   int
}

func NewPayments() *Payments {
	return &Payments{rows: make(map[uuid.UUID]entity.Payment)}
}

func (r *Payments) Put(p *entity.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows[p.ID] = *p
}

func (r *Payments) Create(_ context.Context, p *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.rows[p.ID] = *p

	return nil
}

func (r *Payments) GetByID(_ context.Context, id uuid.UUID) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("repotest - Payments - GetByID: %w", errs.ErrRecordNotFound)
	}

	return &p, nil
}

func (r *Payments) Update(_ context.Context, p *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	if _, ok := r.rows[p.ID]; !ok {
		return fmt.Errorf("repotest - Payments - Update: %w", errs.ErrRecordNotFound)
	}
	r.rows[p.ID] = *p
	r.Updates++

	return nil
}

func (r *Payments) List(_ context.Context, filter dto.PaymentFilter) ([]*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*entity.Payment, 0, len(r.rows))
	for _, p := range r.rows {
		if matches(p, filter) {
			p := p
			result = append(result, &p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset >= len(result) {
		return []*entity.Payment{}, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

func matches(p entity.Payment, f dto.PaymentFilter) bool {
	if f.DealID != nil && p.DealID != *f.DealID {
		return false
	}
	if f.PolicyID != nil && (p.PolicyID == nil || *p.PolicyID != *f.PolicyID) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, p.Status) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, p.PaymentType) {
		return false
	}
	if f.FromDate != nil && p.CreatedAt.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && p.CreatedAt.After(*f.ToDate) {
		return false
	}

	return true
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}

	return false
}

type History struct {
	mu      sync.Mutex
	entries []entity.PaymentHistory
	nextID  int64

	CreateErr error
}

func NewHistory() *History {
	return &History{}
}

func (r *History) Create(_ context.Context, entry *entity.PaymentHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.nextID++
	entry.ID = r.nextID
	r.entries = append(r.entries, *entry)

	return nil
}

func (r *History) ListByPaymentIDs(_ context.Context, ids uuid.UUIDs) (map[uuid.UUID][]*entity.PaymentHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[uuid.UUID][]*entity.PaymentHistory, len(ids))
	for _, id := range ids {
		for _, e := range r.entries {
			if e.PaymentID == id {
				e := e
				result[id] = append(result[id], &e)
			}
		}
	}

	return result, nil
}

// For returns the entries of one payment in insertion order.
func (r *History) For(id uuid.UUID) []entity.PaymentHistory {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.PaymentHistory
	for _, e := range r.entries {
		if e.PaymentID == id {
			out = append(out, e)
		}
	}

	return out
}

type ExportJobs struct {
	mu   sync.Mutex
	rows map[uuid.UUID]entity.ExportJob

	CreateErr error
	UpdateErr error
}

func NewExportJobs() *ExportJobs {
	return &ExportJobs{rows: make(map[uuid.UUID]entity.ExportJob)}
}

func (r *ExportJobs) Create(_ context.Context, job *entity.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.rows[job.ID] = *job

	return nil
}

func (r *ExportJobs) GetByID(_ context.Context, id uuid.UUID) (*entity.ExportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("repotest - ExportJobs - GetByID: %w", errs.ErrRecordNotFound)
	}

	return &job, nil
}

func (r *ExportJobs) Update(_ context.Context, job *entity.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	if _, ok := r.rows[job.ID]; !ok {
		return fmt.Errorf("repotest - ExportJobs - Update: %w", errs.ErrRecordNotFound)
	}
	r.rows[job.ID] = *job

	return nil
}

func (r *ExportJobs) FailStuck(_ context.Context, startedBefore time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	var n int64
	for id, job := range r.rows {
		if job.Status == entity.ExportProcessing && job.CreatedAt.Before(startedBefore) {
			job.Status = entity.ExportFailed
			job.Error = &reason
			job.UpdatedAt = now
			job.CompletedAt = &now
			r.rows[id] = job
			n++
		}
	}

	return n, nil
}

type Artifacts struct {
	mu      sync.Mutex
	Objects map[string][]byte
	// Buckets - бакет, в который загружен ключ
	Buckets map[string]string

	UploadErr error
}

func NewArtifacts() *Artifacts {
	return &Artifacts{Objects: make(map[string][]byte), Buckets: make(map[string]string)}
}

func (r *Artifacts) Upload(_ context.Context, bucket, key string, data io.Reader, _ string, _ int64) error {
	if r.UploadErr != nil {
		return r.UploadErr
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return err
	}

	r.mu.Lock()
	r.Objects[key] = buf.Bytes()
	r.Buckets[key] = bucket
	r.mu.Unlock()

	return nil
}

func (r *Artifacts) PresignGet(_ context.Context, _, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://s3.test/%s?ttl=%d", key, int64(ttl.Seconds())), nil
}

func (r *Artifacts) Delete(_ context.Context, _, key string) error {
	r.mu.Lock()
	delete(r.Objects, key)
	delete(r.Buckets, key)
	r.mu.Unlock()

	return nil
}
