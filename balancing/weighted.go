package balancing

import (
	"context"
	"math"
	"slices"
	"sort"

	"github.com/Dosada05/matchday/models"
)

// exhaustiveLimit - до этого размера пула перебираются все разбиения,
// для больших пулов используется детерминированный локальный поиск.
const exhaustiveLimit = 16

const scoreEpsilon = 1e-12

// neutralRating is used for players that have no stored attributes yet.
const neutralRating = 3

// DefaultWeights apply when a tenant has not configured its own.
var DefaultWeights = []models.BalanceWeight{
	{PositionGroup: models.GroupDefense, Attribute: models.AttrDefending, Weight: 0.5},
	{PositionGroup: models.GroupDefense, Attribute: models.AttrStaminaPace, Weight: 0.3},
	{PositionGroup: models.GroupDefense, Attribute: models.AttrControl, Weight: 0.2},
	{PositionGroup: models.GroupMidfield, Attribute: models.AttrControl, Weight: 0.5},
	{PositionGroup: models.GroupMidfield, Attribute: models.AttrStaminaPace, Weight: 0.3},
	{PositionGroup: models.GroupMidfield, Attribute: models.AttrGoalscoring, Weight: 0.2},
	{PositionGroup: models.GroupAttack, Attribute: models.AttrGoalscoring, Weight: 0.6},
	{PositionGroup: models.GroupAttack, Attribute: models.AttrStaminaPace, Weight: 0.2},
	{PositionGroup: models.GroupAttack, Attribute: models.AttrControl, Weight: 0.2},
}

// Profile - агрегированная сила одной команды.
type Profile struct {
	Defense    float64 `json:"defense"`
	Midfield   float64 `json:"midfield"`
	Attack     float64 `json:"attack"`
	Teamwork   float64 `json:"teamwork"`
	Resilience float64 `json:"resilience"`
}

func (p Profile) dims() [5]float64 {
	return [5]float64{p.Defense, p.Midfield, p.Attack, p.Teamwork, p.Resilience}
}

type Score struct {
	Imbalance      float64 `json:"imbalance_score"`
	BalancePercent int     `json:"balance_percent"`
	TeamA          Profile `json:"team_a"`
	TeamB          Profile `json:"team_b"`
}

// ImbalanceScore is the mean relative difference across profile dimensions, in [0,1].
// It is symmetric in its arguments.
func ImbalanceScore(a, b Profile) float64 {
	da, db := a.dims(), b.dims()
	total := 0.0
	for i := range da {
		hi := math.Max(math.Abs(da[i]), math.Abs(db[i]))
		if hi == 0 {
			continue
		}
		total += math.Abs(da[i]-db[i]) / hi
	}
	return total / float64(len(da))
}

// BalancePercent is what operators see: 100 - round(score*100), clamped to [0,100].
func BalancePercent(score float64) int {
	p := 100 - int(math.Round(score*100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

type attrWeight struct {
	attr   string
	weight float64
}

// weightTable keeps each group's weights sorted by attribute so sums are
// accumulated in the same order on every run.
type weightTable map[models.PositionGroup][]attrWeight

func newWeightTable(weights []models.BalanceWeight) weightTable {
	if len(weights) == 0 {
		weights = DefaultWeights
	}
	t := make(weightTable, len(models.PositionGroups))
	for _, w := range weights {
		t[w.PositionGroup] = append(t[w.PositionGroup], attrWeight{attr: w.Attribute, weight: w.Weight})
	}
	for g := range t {
		sort.SliceStable(t[g], func(i, j int) bool { return t[g][i].attr < t[g][j].attr })
	}
	return t
}

func (t weightTable) groupScore(g models.PositionGroup, p models.PlayerAttributes) float64 {
	s := 0.0
	for _, w := range t[g] {
		s += w.weight * p.Value(w.attr)
	}
	return s
}

type WeightedBalancer struct {
	bounds Bounds
}

func NewWeightedBalancer(bounds Bounds) TeamBalancer {
	return &WeightedBalancer{bounds: bounds}
}

func (b *WeightedBalancer) GetName() models.BalanceType {
	return models.BalanceTypeWeighted
}

func (b *WeightedBalancer) Balance(ctx context.Context, params BalanceParams) (*Result, error) {
	sizes, err := prepare(b.bounds, params)
	if err != nil {
		return nil, err
	}

	// Фиксированный порядок обхода: игроки по возрастанию id.
	ids := slices.Clone(params.PlayerIDs)
	slices.Sort(ids)

	players := make([]models.PlayerAttributes, len(ids))
	for i, id := range ids {
		attrs, ok := params.Attributes[id]
		if !ok {
			attrs = models.PlayerAttributes{
				Goalscoring: neutralRating, Defending: neutralRating, StaminaPace: neutralRating,
				Control: neutralRating, Teamwork: neutralRating, Resilience: neutralRating,
			}
		}
		attrs.PlayerID = id
		players[i] = attrs
	}

	ev := &evaluator{
		players: players,
		weights: newWeightTable(params.Weights),
		formA:   DeriveFormation(sizes.A, params.Simplified),
		formB:   DeriveFormation(sizes.B, params.Simplified),
		sizeA:   sizes.A,
	}

	var inA []bool
	if len(ids) <= exhaustiveLimit {
		inA, err = ev.exhaustive(ctx)
	} else {
		inA, err = ev.localSearch(ctx)
	}
	if err != nil {
		return nil, err
	}

	teamA, teamB := ev.split(inA)
	lineA, profA := ev.lineup(teamA, ev.formA)
	lineB, profB := ev.lineup(teamB, ev.formB)
	imbalance := ImbalanceScore(profA, profB)

	assignments := make([]models.Assignment, 0, len(ids))
	for i, p := range lineA {
		assignments = append(assignments, models.Assignment{PlayerID: p.PlayerID, Team: models.TeamA, SlotNumber: i + 1})
	}
	for i, p := range lineB {
		assignments = append(assignments, models.Assignment{PlayerID: p.PlayerID, Team: models.TeamB, SlotNumber: i + 1})
	}

	return &Result{
		Type:        models.BalanceTypeWeighted,
		Sizes:       sizes,
		Assignments: assignments,
		Score: &Score{
			Imbalance:      imbalance,
			BalancePercent: BalancePercent(imbalance),
			TeamA:          profA,
			TeamB:          profB,
		},
	}, nil
}

type evaluator struct {
	players []models.PlayerAttributes
	weights weightTable
	formA   Formation
	formB   Formation
	sizeA   int
}

func (e *evaluator) split(inA []bool) (a, b []models.PlayerAttributes) {
	for i, p := range e.players {
		if inA[i] {
			a = append(a, p)
		} else {
			b = append(b, p)
		}
	}
	return a, b
}

func (e *evaluator) score(inA []bool) float64 {
	a, b := e.split(inA)
	_, pa := e.lineup(a, e.formA)
	_, pb := e.lineup(b, e.formB)
	return ImbalanceScore(pa, pb)
}

// lineup orders a team into formation slots and computes its profile.
// Defenders are the best defenders, attackers the best goalscorers of the rest,
// everyone else plays midfield; ties are broken by player id.
func (e *evaluator) lineup(team []models.PlayerAttributes, f Formation) ([]models.PlayerAttributes, Profile) {
	rest := slices.Clone(team)
	byAttr := func(attr string) {
		sort.SliceStable(rest, func(i, j int) bool {
			vi, vj := rest[i].Value(attr), rest[j].Value(attr)
			if vi != vj {
				return vi > vj
			}
			return rest[i].PlayerID < rest[j].PlayerID
		})
	}

	byAttr(models.AttrDefending)
	def := rest[:min(f.Defense, len(rest))]
	rest = slices.Clone(rest[len(def):])

	byAttr(models.AttrGoalscoring)
	att := rest[:min(f.Attack, len(rest))]
	mid := slices.Clone(rest[len(att):])
	slices.SortFunc(mid, func(x, y models.PlayerAttributes) int { return x.PlayerID - y.PlayerID })

	var prof Profile
	for _, p := range def {
		prof.Defense += e.weights.groupScore(models.GroupDefense, p)
	}
	for _, p := range mid {
		prof.Midfield += e.weights.groupScore(models.GroupMidfield, p)
	}
	for _, p := range att {
		prof.Attack += e.weights.groupScore(models.GroupAttack, p)
	}
	if len(team) > 0 {
		for _, p := range team {
			prof.Teamwork += p.Teamwork
			prof.Resilience += p.Resilience
		}
		prof.Teamwork /= float64(len(team))
		prof.Resilience /= float64(len(team))
	}

	ordered := make([]models.PlayerAttributes, 0, len(team))
	ordered = append(ordered, def...)
	ordered = append(ordered, mid...)
	ordered = append(ordered, att...)
	return ordered, prof
}

// exhaustive walks every team-A combination in lexicographic index order and keeps
// the first partition reaching the minimum score.
func (e *evaluator) exhaustive(ctx context.Context) ([]bool, error) {
	n := len(e.players)
	idx := make([]int, e.sizeA)
	for i := range idx {
		idx[i] = i
	}

	var best []bool
	bestScore := math.Inf(1)
	inA := make([]bool, n)
	for steps := 0; ; steps++ {
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		clear(inA)
		for _, i := range idx {
			inA[i] = true
		}
		if s := e.score(inA); s < bestScore-scoreEpsilon {
			bestScore = s
			best = slices.Clone(inA)
		}
		if !nextCombination(idx, n) {
			break
		}
	}
	return best, nil
}

// nextCombination advances idx to the next k-combination of [0,n) in lexicographic order.
func nextCombination(idx []int, n int) bool {
	k := len(idx)
	i := k - 1
	for i >= 0 && idx[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	idx[i]++
	for j := i + 1; j < k; j++ {
		idx[j] = idx[j-1] + 1
	}
	return true
}

// localSearch starts from a snake draft by overall rating and applies the first
// strictly improving A<->B swap until none is left.
func (e *evaluator) localSearch(ctx context.Context) ([]bool, error) {
	n := len(e.players)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	overall := func(p models.PlayerAttributes) float64 {
		return p.Goalscoring + p.Defending + p.StaminaPace + p.Control + p.Teamwork + p.Resilience
	}
	sort.SliceStable(order, func(i, j int) bool {
		return overall(e.players[order[i]]) > overall(e.players[order[j]])
	})

	inA := make([]bool, n)
	countA, countB := 0, 0
	sizeB := n - e.sizeA
	for pos, i := range order {
		wantA := pos%4 == 0 || pos%4 == 3
		if wantA && countA < e.sizeA || countB >= sizeB {
			inA[i] = true
			countA++
		} else {
			countB++
		}
	}

	current := e.score(inA)
	const maxPasses = 500
	for pass := 0; pass < maxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		improved := false
		for i := 0; i < n && !improved; i++ {
			if !inA[i] {
				continue
			}
			for j := 0; j < n; j++ {
				if inA[j] {
					continue
				}
				inA[i], inA[j] = false, true
				if s := e.score(inA); s < current-scoreEpsilon {
					current = s
					improved = true
					break
				}
				inA[i], inA[j] = true, false
			}
		}
		if !improved {
			break
		}
	}
	return inA, nil
}
