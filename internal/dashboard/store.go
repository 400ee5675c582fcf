package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/todaytrend/trend-dashboard/internal/models"
)

// Page sizes used by the store actions
const (
	AllLimit    = 50
	RecentLimit = 30
	SearchLimit = 20
)

// ErrSuperseded is returned by a fetch whose result was discarded because a newer fetch started
var ErrSuperseded = errors.New("superseded by a newer request")

// PostSource is what the store needs from the document store client
type PostSource interface {
	ListAll(ctx context.Context, limit, skip int) ([]models.Post, int, error)
	ListRecent(ctx context.Context, limit int) ([]models.Post, error)
	SearchByHashtag(ctx context.Context, term string, limit int) ([]models.Post, error)
	DeleteOne(ctx context.Context, id string) error
}

// View names the fetch that produced the current posts
type View string

const (
	ViewNone    View = ""
	ViewAll     View = "all"
	ViewRecent  View = "recent"
	ViewHashtag View = "hashtag"
)

// CountSource tells what TotalCount currently measures
type CountSource string

const (
	// CountFromStore is the database's total row count (every document, not only posts)
	CountFromStore CountSource = "store"
	// CountDisplayed is the number of posts held in the state
	CountDisplayed CountSource = "displayed"
)

// State is a snapshot of the dashboard
type State struct {
	Posts          []models.Post `json:"posts"`
	Loading        bool          `json:"loading"`
	Error          string        `json:"error,omitempty"`
	TotalCount     int           `json:"total_count"`
	CountSource    CountSource   `json:"count_source,omitempty"`
	StoreTotalRows int           `json:"store_total_rows"` // last total reported by the database
	LastUpdated    *time.Time    `json:"last_updated,omitempty"`
	View           View          `json:"view,omitempty"`
	Query          string        `json:"query,omitempty"`
}

// Store owns the current view of posts and sequences the actions that change it.
//
// Every fetch is tagged with a generation; only the result of the latest fetch
// is committed, so overlapping actions cannot leave an older response on screen.
// Deletes do not take part in the generation and never touch Loading.
type Store struct {
	source PostSource
	now    func() time.Time
	log    *logrus.Entry

	mu         sync.Mutex
	state      State
	generation uint64
	// deletions made while a fetch was in flight, by id, with the generation current at the time
	deleted map[string]uint64
}

// NewStore creates a store reading from source
func NewStore(source PostSource) *Store {
	return &Store{
		source:  source,
		now:     time.Now,
		log:     logrus.WithField("component", "store"),
		state:   State{Posts: []models.Post{}},
		deleted: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state
	snapshot.Posts = append([]models.Post(nil), s.state.Posts...)
	if s.state.LastUpdated != nil {
		lastUpdated := *s.state.LastUpdated
		snapshot.LastUpdated = &lastUpdated
	}
	return snapshot
}

// FetchAll loads the first page of all posts; TotalCount becomes the database total
func (s *Store) FetchAll(ctx context.Context) error {
	gen := s.begin()

	posts, total, err := s.source.ListAll(ctx, AllLimit, 0)
	if err != nil {
		return s.fail(gen, "fetch all", err)
	}

	return s.commit(gen, func(st *State) {
		st.Posts = posts
		st.TotalCount = total
		st.CountSource = CountFromStore
		st.StoreTotalRows = total
		st.View = ViewAll
		st.Query = ""
	})
}

// FetchRecent loads the most recently collected posts
func (s *Store) FetchRecent(ctx context.Context) error {
	gen := s.begin()

	posts, err := s.source.ListRecent(ctx, RecentLimit)
	if err != nil {
		return s.fail(gen, "fetch recent", err)
	}

	return s.commit(gen, func(st *State) {
		st.Posts = posts
		st.TotalCount = len(posts)
		st.CountSource = CountDisplayed
		st.View = ViewRecent
		st.Query = ""
	})
}

// SearchByHashtag loads posts with a hashtag containing term
func (s *Store) SearchByHashtag(ctx context.Context, term string) error {
	gen := s.begin()

	posts, err := s.source.SearchByHashtag(ctx, term, SearchLimit)
	if err != nil {
		return s.fail(gen, "hashtag search", err)
	}

	return s.commit(gen, func(st *State) {
		st.Posts = posts
		st.TotalCount = len(posts)
		st.CountSource = CountDisplayed
		st.View = ViewHashtag
		st.Query = term
	})
}

// Refresh reloads the recent view
func (s *Store) Refresh(ctx context.Context) error {
	return s.FetchRecent(ctx)
}

// Reload re-runs the fetch behind the current view, keeping a hashtag search
// or the all-posts page in place. It does nothing while a fetch is in flight.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	loading, view, query := s.state.Loading, s.state.View, s.state.Query
	s.mu.Unlock()

	if loading {
		s.log.Debug("Skipping reload, a fetch is already in flight")
		return nil
	}

	switch view {
	case ViewAll:
		return s.FetchAll(ctx)
	case ViewHashtag:
		return s.SearchByHashtag(ctx, query)
	default:
		return s.FetchRecent(ctx)
	}
}

// DeleteEntity deletes a post remotely and, only once that succeeded, drops it locally
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	err := s.source.DeleteOne(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.log.Errorf("Failed to delete %s: %v", id, err)
		s.state.Error = err.Error()
		return err
	}

	s.state.Posts = withoutPost(s.state.Posts, id)
	s.state.TotalCount = len(s.state.Posts)
	s.state.CountSource = CountDisplayed
	if s.state.StoreTotalRows > 0 {
		s.state.StoreTotalRows--
	}
	if s.state.Loading {
		s.deleted[id] = s.generation
	}

	s.log.Infof("Deleted %s, %d posts remain in view", id, len(s.state.Posts))
	return nil
}

// ClearError removes the current error message
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = ""
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.state.Loading = true
	s.state.Error = ""
	for id, gen := range s.deleted {
		if gen < s.generation-1 {
			delete(s.deleted, id)
		}
	}
	return s.generation
}

func (s *Store) commit(gen uint64, apply func(st *State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.log.Debugf("Discarding result of superseded fetch %d (latest is %d)", gen, s.generation)
		return ErrSuperseded
	}

	apply(&s.state)
	if s.state.Posts == nil {
		s.state.Posts = []models.Post{}
	}

	// a delete confirmed while this fetch was in flight wins over the fetched page
	for id, deletedAt := range s.deleted {
		if deletedAt >= gen {
			before := len(s.state.Posts)
			s.state.Posts = withoutPost(s.state.Posts, id)
			if s.state.CountSource == CountDisplayed {
				s.state.TotalCount -= before - len(s.state.Posts)
			}
		}
		delete(s.deleted, id)
	}

	now := s.now()
	s.state.LastUpdated = &now
	s.state.Loading = false
	return nil
}

func (s *Store) fail(gen uint64, action string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.log.Debugf("Discarding error of superseded %s: %v", action, err)
		return ErrSuperseded
	}

	s.log.Errorf("Dashboard %s failed: %v", action, err)
	s.state.Loading = false
	s.state.Error = err.Error()
	return err
}

func withoutPost(posts []models.Post, id string) []models.Post {
	kept := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		if post.ID != id {
			kept = append(kept, post)
		}
	}
	return kept
}
