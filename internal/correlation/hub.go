package correlation

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fip/internal/finding"
	"fip/internal/slogutil"
)

// Knowledge index names.
const (
	IndexVulnerabilities = "vulnerabilities"
	IndexBottlenecks     = "bottlenecks"
	IndexComponents      = "components"
	IndexQueries         = "queries"
	IndexTables          = "tables"
	IndexCoverageGaps    = "coverageGaps"
)

// Hub stores shared findings, correlates them and keeps the insight list.
type Hub struct {
	logger *slog.Logger
	now    func() time.Time
	rules  []SemanticRule

	mu           sync.Mutex
	findings     map[string]finding.Finding
	order        []string
	byFile       map[string][]string
	correlations map[string][]Correlation
	insights     []Insight
	listeners    map[finding.Producer][]Listener
	knowledge    map[finding.Producer]map[string]map[string][]string
}

// Option configures a Hub.
type Option func(*Hub)

// WithRules appends semantic rules to the builtin set.
func WithRules(rules ...SemanticRule) Option {
	return func(h *Hub) { h.rules = append(h.rules, rules...) }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// NewHub creates an empty hub with the builtin semantic rules.
func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger:    slogutil.OrDiscard(logger),
		now:       time.Now,
		rules:     BuiltinRules(),
		listeners: make(map[finding.Producer][]Listener),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.resetLocked()
	return h
}

var (
	defaultOnce sync.Once
	defaultHub  *Hub
)

// Default returns a lazily built process-wide hub for convenience call
// sites. Prefer constructing a Hub and passing it explicitly.
func Default() *Hub {
	defaultOnce.Do(func() {
		defaultHub = NewHub(nil)
	})
	return defaultHub
}

func (h *Hub) resetLocked() {
	h.findings = make(map[string]finding.Finding)
	h.order = nil
	h.byFile = make(map[string][]string)
	h.correlations = make(map[string][]Correlation)
	h.insights = nil
	h.knowledge = make(map[finding.Producer]map[string]map[string][]string)
}

// Subscribe registers l for notifications addressed to producer. Use
// AllProducers to receive every notification.
func (h *Hub) Subscribe(producer finding.Producer, l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[producer] = append(h.listeners[producer], l)
}

// ShareFinding stores f under producer, correlates it with the active
// findings of other producers and returns its ID. Correlations are stored
// against f. Listeners of every correlated producer are notified. Sharing an
// ID that is already active returns it without correlating again.
func (h *Hub) ShareFinding(producer finding.Producer, f finding.Finding) string {
	h.mu.Lock()

	now := h.now()
	f = f.Clone()
	f.Producer = producer
	f = finding.Normalize(f, now)

	if _, exists := h.findings[f.ID]; exists {
		h.mu.Unlock()
		return f.ID
	}
	h.order = append(h.order, f.ID)
	h.byFile[f.Location.File] = append(h.byFile[f.Location.File], f.ID)
	h.findings[f.ID] = f
	h.indexKnowledgeLocked(f)

	correlations := h.correlateLocked(f, now)
	var insights []Insight
	if len(correlations) > 0 {
		h.correlations[f.ID] = append(h.correlations[f.ID], correlations...)
		insights = h.synthesizeLocked(f, correlations, now)
		h.insights = append(h.insights, insights...)
	}

	deliveries := h.deliveriesLocked(f, correlations, insights)
	h.mu.Unlock()

	if len(correlations) > 0 {
		h.logger.Debug("Correlated finding",
			"finding", f.ID,
			"producer", string(producer),
			"correlations", len(correlations),
			"insights", len(insights),
		)
	}
	for _, d := range deliveries {
		d.listener.OnCorrelation(d.notification)
	}
	return f.ID
}

// correlateLocked evaluates every rule against every active finding of a
// different producer.
func (h *Hub) correlateLocked(f finding.Finding, now time.Time) []Correlation {
	var out []Correlation
	for _, id := range h.order {
		other, ok := h.findings[id]
		if !ok || id == f.ID || other.Producer == f.Producer {
			continue
		}
		add := func(typ string, confidence float64) {
			out = append(out, Correlation{
				Type:            typ,
				FindingID:       f.ID,
				RelatedID:       other.ID,
				Producer:        f.Producer,
				RelatedProducer: other.Producer,
				File:            f.Location.File,
				Confidence:      confidence,
				CreatedAt:       now,
			})
		}

		sameFile := f.Location.File != "" && f.Location.File == other.Location.File
		component := f.Metadata.GetString(finding.MetaComponent)
		sameComponent := component != "" && component == other.Metadata.GetString(finding.MetaComponent)

		if sameFile {
			add(TypeSameFile, SameFileConfidence)
		}
		if sameComponent {
			add(TypeSameComponent, SameComponentConfidence)
		}
		if RelatedPattern(f.EffectiveType(), other.EffectiveType()) {
			add(TypeRelatedPattern, RelatedPatternConfidence)
		}
		for _, rule := range h.rules {
			if rule.Matches(f, other) || rule.Matches(other, f) {
				add(rule.Insight, rule.Confidence)
			}
		}
	}
	return out
}

// synthesizeLocked turns the correlations of one shared finding into
// insights: a HOTSPOT when at least HotspotProducers producers share its file, and
// one insight per matched semantic rule.
func (h *Hub) synthesizeLocked(f finding.Finding, correlations []Correlation, now time.Time) []Insight {
	groups := make(map[string][]Correlation)
	var order []string
	for _, c := range correlations {
		if _, ok := groups[c.Type]; !ok {
			order = append(order, c.Type)
		}
		groups[c.Type] = append(groups[c.Type], c)
	}

	var out []Insight
	for _, typ := range order {
		group := groups[typ]
		switch typ {
		case TypeSameFile:
			producers := producersOf(f.Producer, group)
			if len(producers) < HotspotProducers {
				continue
			}
			out = append(out, Insight{
				ID:             uuid.NewString(),
				Type:           InsightHotspot,
				Description:    fmt.Sprintf("%s has findings from %d producers: %s", f.Location.File, len(producers), joinProducers(producers)),
				Producers:      producers,
				Priority:       PriorityHigh,
				Recommendation: "Review this file as a whole; fixes in one area are likely to touch the others",
				File:           f.Location.File,
				FindingIDs:     findingIDs(f.ID, group),
				CreatedAt:      now,
			})
		case TypeSameComponent, TypeRelatedPattern:
			continue
		default:
			rule, ok := h.ruleByInsight(typ)
			if !ok {
				continue
			}
			out = append(out, Insight{
				ID:             uuid.NewString(),
				Type:           rule.Insight,
				Description:    rule.Description,
				Producers:      producersOf(f.Producer, group),
				Priority:       rule.Priority,
				Recommendation: rule.Recommendation,
				File:           f.Location.File,
				FindingIDs:     findingIDs(f.ID, group),
				CreatedAt:      now,
			})
		}
	}
	return out
}

func (h *Hub) ruleByInsight(name string) (SemanticRule, bool) {
	for _, r := range h.rules {
		if r.Insight == name {
			return r, true
		}
	}
	return SemanticRule{}, false
}

type delivery struct {
	listener     Listener
	notification Notification
}

func (h *Hub) deliveriesLocked(f finding.Finding, correlations []Correlation, insights []Insight) []delivery {
	if len(correlations) == 0 {
		return nil
	}
	byProducer := make(map[finding.Producer][]Correlation)
	var producers []finding.Producer
	for _, c := range correlations {
		if _, ok := byProducer[c.RelatedProducer]; !ok {
			producers = append(producers, c.RelatedProducer)
		}
		byProducer[c.RelatedProducer] = append(byProducer[c.RelatedProducer], c)
	}

	var out []delivery
	for _, p := range producers {
		n := Notification{Producer: p, Finding: f.Clone(), Correlations: byProducer[p], Insights: insights}
		for _, l := range h.listeners[p] {
			out = append(out, delivery{listener: l, notification: n})
		}
		for _, l := range h.listeners[AllProducers] {
			out = append(out, delivery{listener: l, notification: n})
		}
	}
	return out
}

func (h *Hub) indexKnowledgeLocked(f finding.Finding) {
	add := func(index, key string) {
		if key == "" {
			return
		}
		byIndex, ok := h.knowledge[f.Producer]
		if !ok {
			byIndex = make(map[string]map[string][]string)
			h.knowledge[f.Producer] = byIndex
		}
		entries, ok := byIndex[index]
		if !ok {
			entries = make(map[string][]string)
			byIndex[index] = entries
		}
		for _, id := range entries[key] {
			if id == f.ID {
				return
			}
		}
		entries[key] = append(entries[key], f.ID)
	}

	file := f.Location.File
	switch f.Producer {
	case finding.ProducerSecurity:
		add(IndexVulnerabilities, file)
	case finding.ProducerPerformance:
		add(IndexBottlenecks, file)
	case finding.ProducerDesign:
		component := f.Metadata.GetString(finding.MetaComponent)
		if component == "" {
			component = file
		}
		add(IndexComponents, component)
	case finding.ProducerDatabase:
		add(IndexQueries, file)
		add(IndexTables, f.Metadata.GetString(finding.MetaTable))
	case finding.ProducerTesting:
		add(IndexCoverageGaps, file)
	}
}

// Knowledge returns a copy of the producer's knowledge indices:
// index name → key → finding IDs.
func (h *Hub) Knowledge(producer finding.Producer) map[string]map[string][]string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]map[string][]string)
	for index, entries := range h.knowledge[producer] {
		copied := make(map[string][]string, len(entries))
		for k, ids := range entries {
			copied[k] = append([]string(nil), ids...)
		}
		out[index] = copied
	}
	return out
}

// Finding returns a shared finding by ID.
func (h *Hub) Finding(id string) (finding.Finding, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.findings[id]
	if !ok {
		return finding.Finding{}, false
	}
	return f.Clone(), true
}

// Findings returns all active findings in the order they were shared.
func (h *Hub) Findings() []finding.Finding {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]finding.Finding, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.findings[id].Clone())
	}
	return out
}

// FindingsForFile returns the active findings for file in share order.
func (h *Hub) FindingsForFile(file string) []finding.Finding {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := h.byFile[file]
	out := make([]finding.Finding, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.findings[id].Clone())
	}
	return out
}

// Correlations returns the correlations stored against id.
func (h *Hub) Correlations(id string) []Correlation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Correlation(nil), h.correlations[id]...)
}

// Insights returns all insights ordered CRITICAL, HIGH, MEDIUM, LOW, keeping
// insertion order within a priority.
func (h *Hub) Insights() []Insight {
	h.mu.Lock()
	out := append([]Insight(nil), h.insights...)
	h.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() > out[j].Priority.Rank()
	})
	return out
}

// Opportunities returns the files at least two distinct producers reported
// findings for, sorted by file.
func (h *Hub) Opportunities() []Opportunity {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Opportunity
	for file, ids := range h.byFile {
		seen := make(map[finding.Producer]bool)
		var producers []finding.Producer
		for _, id := range ids {
			p := h.findings[id].Producer
			if !seen[p] {
				seen[p] = true
				producers = append(producers, p)
			}
		}
		if len(producers) < 2 {
			continue
		}
		sort.Slice(producers, func(i, j int) bool { return producers[i] < producers[j] })
		out = append(out, Opportunity{File: file, Producers: producers})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}

// Stats returns hub counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Stats{
		Findings:   len(h.findings),
		Insights:   len(h.insights),
		Files:      len(h.byFile),
		ByProducer: make(map[finding.Producer]int),
	}
	for _, cs := range h.correlations {
		st.Correlations += len(cs)
	}
	for _, f := range h.findings {
		st.ByProducer[f.Producer]++
	}
	return st
}

// Clear drops all findings, correlations, insights and knowledge. Listeners
// stay subscribed.
func (h *Hub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked()
}

// Purge removes findings discovered more than maxAge ago together with the
// correlations that reference them and their knowledge entries. It returns
// the number of findings removed.
func (h *Hub) Purge(maxAge time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-maxAge)
	removed := make(map[string]bool)
	for id, f := range h.findings {
		if f.DiscoveredAt.Before(cutoff) {
			removed[id] = true
		}
	}
	if len(removed) == 0 {
		return 0
	}

	for id := range removed {
		delete(h.findings, id)
		delete(h.correlations, id)
	}
	h.order = filterIDs(h.order, removed)
	for file, ids := range h.byFile {
		if kept := filterIDs(ids, removed); len(kept) > 0 {
			h.byFile[file] = kept
		} else {
			delete(h.byFile, file)
		}
	}
	for id, cs := range h.correlations {
		kept := cs[:0]
		for _, c := range cs {
			if !removed[c.RelatedID] {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			h.correlations[id] = kept
		} else {
			delete(h.correlations, id)
		}
	}
	for _, byIndex := range h.knowledge {
		for _, entries := range byIndex {
			for key, ids := range entries {
				if kept := filterIDs(ids, removed); len(kept) > 0 {
					entries[key] = kept
				} else {
					delete(entries, key)
				}
			}
		}
	}

	h.logger.Debug("Purged findings", "count", len(removed), "maxAge", maxAge)
	return len(removed)
}

func filterIDs(ids []string, removed map[string]bool) []string {
	out := ids[:0]
	for _, id := range ids {
		if !removed[id] {
			out = append(out, id)
		}
	}
	return out
}

func producersOf(first finding.Producer, group []Correlation) []finding.Producer {
	seen := map[finding.Producer]bool{first: true}
	out := []finding.Producer{first}
	for _, c := range group {
		if !seen[c.RelatedProducer] {
			seen[c.RelatedProducer] = true
			out = append(out, c.RelatedProducer)
		}
	}
	return out
}

func findingIDs(first string, group []Correlation) []string {
	out := []string{first}
	for _, c := range group {
		out = append(out, c.RelatedID)
	}
	return out
}

func joinProducers(ps []finding.Producer) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
