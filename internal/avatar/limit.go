package avatar

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limited caps the number of generations in flight. Callers wait for a slot
// until their context ends.
type Limited struct {
	next Generator
	sem  *semaphore.Weighted
}

func NewLimited(next Generator, maxConcurrent int) *Limited {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

func (l *Limited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.next.Generate(ctx, prompt)
}
