package catalog

import (
	"context"
	"strings"
	"sync"
)

// InMemoryCatalog is a seedable catalog for local/dev use and tests.
type InMemoryCatalog struct {
	mu          sync.RWMutex
	jobs        map[string]Job
	invitations map[string]Invitation
	templates   map[string]PromptTemplate
}

func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{
		jobs:        make(map[string]Job),
		invitations: make(map[string]Invitation),
		templates:   make(map[string]PromptTemplate),
	}
}

func (c *InMemoryCatalog) PutJob(j Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[j.ID] = j
}

func (c *InMemoryCatalog) PutInvitation(inv Invitation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invitations[inv.ID] = inv
}

func (c *InMemoryCatalog) PutTemplate(t PromptTemplate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[t.ID] = t
}

func (c *InMemoryCatalog) GetJob(_ context.Context, id string) (Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	j, ok := c.jobs[strings.TrimSpace(id)]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (c *InMemoryCatalog) GetInvitation(_ context.Context, id string) (Invitation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inv, ok := c.invitations[strings.TrimSpace(id)]
	if !ok {
		return Invitation{}, ErrNotFound
	}
	return inv, nil
}

func (c *InMemoryCatalog) LatestInvitationForJob(_ context.Context, jobID string) (Invitation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var (
		latest Invitation
		found  bool
	)
	for _, inv := range c.invitations {
		if inv.JobID != jobID {
			continue
		}
		if !found || inv.CreatedAt.After(latest.CreatedAt) {
			latest = inv
			found = true
		}
	}
	if !found {
		return Invitation{}, ErrNotFound
	}
	return latest, nil
}

func (c *InMemoryCatalog) GetTemplate(_ context.Context, id string) (PromptTemplate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[strings.TrimSpace(id)]
	if !ok {
		return PromptTemplate{}, ErrNotFound
	}
	return t, nil
}

func (c *InMemoryCatalog) Close() error { return nil }
