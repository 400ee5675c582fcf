package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/todaytrend/trend-dashboard/internal/models"
)

// Ranking parameters
const (
	MinKeywordCount = 2
	MaxRankedWords  = 20
)

// Status describes what the accessor currently holds
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusEmpty   Status = "empty"
	StatusReady   Status = "ready"
)

// AnalysisSource returns the latest keyword analysis, or nil when there is none
type AnalysisSource interface {
	FetchLatestAnalysis(ctx context.Context) (*models.KeywordAnalysis, error)
}

// View is the accessor state as presented to callers
type View struct {
	Status     Status                  `json:"status"`
	Error      string                  `json:"error,omitempty"`
	Analysis   *models.KeywordAnalysis `json:"analysis,omitempty"`
	Engagement []models.EngagementRank `json:"engagement_ranking"`
	LoadedAt   *time.Time              `json:"loaded_at,omitempty"`
}

// Accessor loads and holds the latest keyword analysis document, independently of the post store
type Accessor struct {
	source AnalysisSource
	now    func() time.Time
	log    *logrus.Entry

	mu       sync.Mutex
	loading  bool
	err      string
	analysis *models.KeywordAnalysis
	loadedAt *time.Time
	attempt  uint64
}

// NewAccessor creates an accessor; nothing is loaded until Load is called
func NewAccessor(source AnalysisSource) *Accessor {
	return &Accessor{
		source: source,
		now:    time.Now,
		log:    logrus.WithField("component", "analysis"),
	}
}

// Load fetches the latest analysis. Calling it again after a failure is the retry.
func (a *Accessor) Load(ctx context.Context) error {
	a.mu.Lock()
	a.attempt++
	attempt := a.attempt
	a.loading = true
	a.err = ""
	a.mu.Unlock()

	doc, err := a.source.FetchLatestAnalysis(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if attempt != a.attempt {
		// a newer Load owns the state
		return err
	}
	a.loading = false

	if err != nil {
		a.log.Errorf("Failed to load keyword analysis: %v", err)
		a.err = err.Error()
		return err
	}

	a.analysis = doc
	now := a.now()
	a.loadedAt = &now

	if doc == nil {
		a.log.Info("No keyword analysis document found")
	} else {
		a.log.Infof("Loaded keyword analysis %s (%d tweets over %d days)", doc.ID, doc.TotalTweets, doc.DaysAnalyzed)
	}
	return nil
}

// Status reports the accessor status; an absent document is empty, not an error
func (a *Accessor) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status()
}

func (a *Accessor) status() Status {
	switch {
	case a.loading:
		return StatusLoading
	case a.err != "":
		return StatusError
	case a.analysis == nil:
		return StatusEmpty
	default:
		return StatusReady
	}
}

// Analysis returns the current document, nil when none is loaded
func (a *Accessor) Analysis() *models.KeywordAnalysis {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analysis
}

// View returns the current state with the engagement ranking computed from the current document
func (a *Accessor) View() View {
	a.mu.Lock()
	view := View{
		Status:   a.status(),
		Error:    a.err,
		Analysis: a.analysis,
	}
	if a.loadedAt != nil {
		loadedAt := *a.loadedAt
		view.LoadedAt = &loadedAt
	}
	a.mu.Unlock()

	view.Engagement = EngagementRanking(view.Analysis)
	return view
}

// EngagementRanking ranks keywords seen at least MinKeywordCount times by average
// engagement, highest first, ties broken by count then keyword. At most MaxRankedWords
// entries are returned.
func EngagementRanking(doc *models.KeywordAnalysis) []models.EngagementRank {
	ranking := []models.EngagementRank{}
	if doc == nil {
		return ranking
	}

	for keyword, acc := range doc.KeywordTrends.Engagement {
		if acc.Count < MinKeywordCount {
			continue
		}
		ranking = append(ranking, models.EngagementRank{
			Keyword:       keyword,
			AvgEngagement: acc.Average(),
			Count:         acc.Count,
		})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].AvgEngagement != ranking[j].AvgEngagement {
			return ranking[i].AvgEngagement > ranking[j].AvgEngagement
		}
		if ranking[i].Count != ranking[j].Count {
			return ranking[i].Count > ranking[j].Count
		}
		return ranking[i].Keyword < ranking[j].Keyword
	})

	if len(ranking) > MaxRankedWords {
		ranking = ranking[:MaxRankedWords]
	}
	return ranking
}
