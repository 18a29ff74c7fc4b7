// internal/store/storetest/memory.go
//
// Package storetest holds an in-memory stand-in for the Postgres store with
// the same method sets and error sentinels. It is used by handler and e2e
// tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"property-tracker/internal/models"
	"property-tracker/internal/store"
)

type Memory struct {
	mu         sync.Mutex
	seq        int
	now        func() time.Time
	users      map[string]models.User
	groups     map[string]models.SearchGroup
	properties map[string]models.Property

	// FailWrites makes every write return it. Reads keep working.
	FailWrites error

	Users      *Users
	Groups     *Groups
	Properties *Properties
}

func NewMemory() *Memory {
	m := &Memory{
		now:        func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
		users:      make(map[string]models.User),
		groups:     make(map[string]models.SearchGroup),
		properties: make(map[string]models.Property),
	}
	m.Users = &Users{m}
	m.Groups = &Groups{m}
	m.Properties = &Properties{m}
	return m
}

// SetFailWrites swaps the write failure under the lock.
func (m *Memory) SetFailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailWrites = err
}

func (m *Memory) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func notFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", store.ErrNotFound, what, id)
}

// ownsGroup must be called with mu held.
func (m *Memory) ownsGroup(ownerID, groupID string) bool {
	g, ok := m.groups[groupID]
	return ok && g.OwnerID == ownerID
}

// ==========================
// Users
// ==========================

type Users struct{ m *Memory }

func (u *Users) Insert(ctx context.Context, user models.User) (models.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()

	for _, existing := range u.m.users {
		if existing.Email == user.Email {
			return models.User{}, fmt.Errorf("%w: %s", store.ErrEmailInUse, user.Email)
		}
	}
	user.ID = u.m.nextID("user")
	user.CreatedAt = u.m.now()
	u.m.users[user.ID] = user
	return user, nil
}

func (u *Users) GetByEmail(ctx context.Context, email string) (models.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()

	for _, user := range u.m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, notFound("user", email)
}

// ==========================
// Groups
// ==========================

type Groups struct{ m *Memory }

func (g *Groups) ListByOwner(ctx context.Context, ownerID string) ([]models.SearchGroup, error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	out := []models.SearchGroup{}
	for _, group := range g.m.groups {
		if group.OwnerID == ownerID {
			out = append(out, group)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *Groups) Get(ctx context.Context, ownerID, id string) (models.SearchGroup, error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	if !g.m.ownsGroup(ownerID, id) {
		return models.SearchGroup{}, notFound("search group", id)
	}
	return g.m.groups[id], nil
}

func (g *Groups) Insert(ctx context.Context, group models.SearchGroup) (models.SearchGroup, error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	if g.m.FailWrites != nil {
		return models.SearchGroup{}, g.m.FailWrites
	}
	group.Name = strings.TrimSpace(group.Name)
	if err := models.ValidateName(group.Name); err != nil {
		return models.SearchGroup{}, err
	}
	group.ID = g.m.nextID("group")
	group.CreatedAt = g.m.now()
	g.m.groups[group.ID] = group
	return group, nil
}

func (g *Groups) Update(ctx context.Context, ownerID, id string, fields map[string]interface{}) error {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	if g.m.FailWrites != nil {
		return g.m.FailWrites
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", store.ErrNoFields)
	}
	if !g.m.ownsGroup(ownerID, id) {
		return notFound("search group", id)
	}

	group := g.m.groups[id]
	for col, v := range fields {
		s, _ := v.(string)
		switch col {
		case "name":
			if err := models.ValidateName(s); err != nil {
				return err
			}
			group.Name = strings.TrimSpace(s)
		case "description":
			group.Description = s
		default:
			return fmt.Errorf("%w: %s", models.ErrUnknownField, col)
		}
	}
	g.m.groups[id] = group
	return nil
}

func (g *Groups) Delete(ctx context.Context, ownerID, id string) (int64, error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	if g.m.FailWrites != nil {
		return 0, g.m.FailWrites
	}
	if !g.m.ownsGroup(ownerID, id) {
		return 0, notFound("search group", id)
	}

	var removed int64
	for pid, p := range g.m.properties {
		if p.SearchGroupID == id {
			delete(g.m.properties, pid)
			removed++
		}
	}
	delete(g.m.groups, id)
	return removed, nil
}

// ==========================
// Properties
// ==========================

type Properties struct{ m *Memory }

func (p *Properties) ListByParent(ctx context.Context, ownerID, groupID string) ([]models.Property, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()

	out := []models.Property{}
	if !p.m.ownsGroup(ownerID, groupID) {
		return out, nil
	}
	for _, prop := range p.m.properties {
		if prop.SearchGroupID == groupID {
			out = append(out, prop)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Properties) Get(ctx context.Context, ownerID, id string) (models.Property, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()

	prop, ok := p.m.properties[id]
	if !ok || !p.m.ownsGroup(ownerID, prop.SearchGroupID) {
		return models.Property{}, notFound("property", id)
	}
	return prop, nil
}

func (p *Properties) Insert(ctx context.Context, ownerID string, prop models.Property) (models.Property, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()

	if p.m.FailWrites != nil {
		return models.Property{}, p.m.FailWrites
	}
	if !p.m.ownsGroup(ownerID, prop.SearchGroupID) {
		return models.Property{}, notFound("search group", prop.SearchGroupID)
	}
	prop.ID = p.m.nextID("prop")
	prop.CreatedAt = p.m.now()
	p.m.properties[prop.ID] = prop
	return prop, nil
}

// Update applies column values through the property field registry, so the
// stored record looks the way Postgres would return it.
func (p *Properties) Update(ctx context.Context, ownerID, id string, fields map[string]interface{}) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()

	if p.m.FailWrites != nil {
		return p.m.FailWrites
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", store.ErrNoFields)
	}
	prop, ok := p.m.properties[id]
	if !ok || !p.m.ownsGroup(ownerID, prop.SearchGroupID) {
		return notFound("property", id)
	}

	byColumn := columnFields()
	var next models.Entity = prop
	for col, v := range fields {
		field, ok := byColumn[col]
		if !ok {
			return fmt.Errorf("%w: %s", models.ErrUnknownField, col)
		}
		updated, err := next.WithField(field, v)
		if err != nil {
			return err
		}
		next = updated
	}
	p.m.properties[id] = next.(models.Property)
	return nil
}

func (p *Properties) Delete(ctx context.Context, ownerID, id string) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()

	if p.m.FailWrites != nil {
		return p.m.FailWrites
	}
	prop, ok := p.m.properties[id]
	if !ok || !p.m.ownsGroup(ownerID, prop.SearchGroupID) {
		return notFound("property", id)
	}
	delete(p.m.properties, id)
	return nil
}

var jsonFields = []string{
	"url", "title", "price", "address", "thumbnail", "sourceName", "comments",
	"contactName", "contactPhone", "operationType", "propertyType", "floorLabel",
	"expenses", "coveredArea", "uncoveredArea", "lat", "lng", "rating", "status",
	"favorite", "nextVisitAt",
}

func columnFields() map[string]string {
	out := make(map[string]string, len(jsonFields))
	for _, f := range jsonFields {
		if col, ok := models.PropertyColumn(f); ok {
			out[col] = f
		}
	}
	return out
}
