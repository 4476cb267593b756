package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/villa-intake-api/internal/models"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
)

type stubCacheRepo struct {
	mu       sync.Mutex
	store    map[string][]byte
	getErr   error
	setErr   error
	setCalls int
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return s.getErr
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

func (s *stubCacheRepo) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.store[key]
	return ok
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errCRMDown = errors.New("dial tcp: connection refused")

// stubCRM is an in-memory CRM. Setting fail makes every call error.
type stubCRM struct {
	mu            sync.Mutex
	fail          error
	contacts      []models.CRMContact
	opportunities []models.CRMOpportunity
	notes         []models.CRMNote
	tags          map[string][]string
	pipelines     []models.CRMPipeline
	stageUpdates  []string
	calls         []string
	now           func() time.Time
	seq           int
}

func newStubCRM() *stubCRM {
	return &stubCRM{tags: map[string][]string{}, now: time.Now}
}

func (s *stubCRM) record(op string) error {
	s.calls = append(s.calls, op)
	return s.fail
}

func (s *stubCRM) nextID(prefix string) string {
	s.seq++
	return prefix + "-" + strconv.Itoa(s.seq)
}

func (s *stubCRM) FindContact(_ context.Context, email, phone string) (*models.CRMContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("find_contact"); err != nil {
		return nil, err
	}
	for _, c := range s.contacts {
		if (email != "" && c.Email == email) || (phone != "" && c.Phone == phone) {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (s *stubCRM) CreateContact(_ context.Context, contact models.CRMContact) (*models.CRMContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create_contact"); err != nil {
		return nil, err
	}
	contact.ID = s.nextID("contact")
	s.contacts = append(s.contacts, contact)
	return &contact, nil
}

func (s *stubCRM) ListOpenOpportunities(_ context.Context, contactID string) ([]models.CRMOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("list_opportunities"); err != nil {
		return nil, err
	}
	var out []models.CRMOpportunity
	for _, o := range s.opportunities {
		if o.ContactID == contactID && o.Status != "lost" {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubCRM) GetOpportunity(_ context.Context, id string) (*models.CRMOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("get_opportunity"); err != nil {
		return nil, err
	}
	for _, o := range s.opportunities {
		if o.ID == id {
			found := o
			return &found, nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (s *stubCRM) CreateOpportunity(_ context.Context, opp models.CRMOpportunity) (*models.CRMOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create_opportunity"); err != nil {
		return nil, err
	}
	opp.ID = s.nextID("opp")
	opp.Status = "open"
	opp.DedupKey = models.DedupKeyFromTitle(opp.Name)
	opp.CreatedAt = s.now()
	s.opportunities = append(s.opportunities, opp)
	return &opp, nil
}

func (s *stubCRM) UpdateOpportunityStage(_ context.Context, id, stageID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("update_stage"); err != nil {
		return err
	}
	for i := range s.opportunities {
		if s.opportunities[i].ID == id {
			if stageID != "" {
				s.opportunities[i].StageID = stageID
			}
			if status != "" {
				s.opportunities[i].Status = status
			}
			s.stageUpdates = append(s.stageUpdates, id+":"+stageID+":"+status)
			return nil
		}
	}
	return appErrors.ErrNotFound
}

func (s *stubCRM) AddNote(_ context.Context, contactID, body string) (*models.CRMNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("add_note"); err != nil {
		return nil, err
	}
	note := models.CRMNote{ID: s.nextID("note"), ContactID: contactID, Body: body}
	s.notes = append(s.notes, note)
	return &note, nil
}

func (s *stubCRM) AddTags(_ context.Context, contactID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("add_tags"); err != nil {
		return err
	}
	s.tags[contactID] = append(s.tags[contactID], tags...)
	return nil
}

func (s *stubCRM) ListPipelines(_ context.Context) ([]models.CRMPipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("list_pipelines"); err != nil {
		return nil, err
	}
	return s.pipelines, nil
}

func (s *stubCRM) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}
