package balancing

import "github.com/Dosada05/matchday/models"

// Formation - число позиций в каждой линии. Слоты нумеруются: сначала защита,
// затем полузащита, затем атака.
type Formation struct {
	Defense  int `json:"defense"`
	Midfield int `json:"midfield"`
	Attack   int `json:"attack"`
}

func (f Formation) Total() int {
	return f.Defense + f.Midfield + f.Attack
}

func (f Formation) Count(g models.PositionGroup) int {
	switch g {
	case models.GroupDefense:
		return f.Defense
	case models.GroupMidfield:
		return f.Midfield
	case models.GroupAttack:
		return f.Attack
	}
	return 0
}

// GroupForSlot maps a 1-based slot number to its line.
func (f Formation) GroupForSlot(slot int) models.PositionGroup {
	switch {
	case slot <= f.Defense:
		return models.GroupDefense
	case slot <= f.Defense+f.Midfield:
		return models.GroupMidfield
	default:
		return models.GroupAttack
	}
}

func (f *Formation) add(g models.PositionGroup, delta int) {
	switch g {
	case models.GroupDefense:
		f.Defense += delta
	case models.GroupMidfield:
		f.Midfield += delta
	case models.GroupAttack:
		f.Attack += delta
	}
}

var baseFormations = map[int]Formation{
	3:  {Defense: 1, Midfield: 1, Attack: 1},
	5:  {Defense: 2, Midfield: 2, Attack: 1},
	6:  {Defense: 2, Midfield: 3, Attack: 1},
	7:  {Defense: 3, Midfield: 3, Attack: 1},
	8:  {Defense: 3, Midfield: 4, Attack: 1},
	9:  {Defense: 3, Midfield: 4, Attack: 2},
	10: {Defense: 4, Midfield: 4, Attack: 2},
	11: {Defense: 4, Midfield: 5, Attack: 2},
}

// Tie preference when growing: midfield first. When shrinking: attack first.
var (
	growOrder   = []models.PositionGroup{models.GroupMidfield, models.GroupDefense, models.GroupAttack}
	shrinkOrder = []models.PositionGroup{models.GroupAttack, models.GroupDefense, models.GroupMidfield}
)

// DeriveFormation returns a formation with exactly size positions. A team of four in
// simplified mode plays without lines: every position is midfield.
func DeriveFormation(size int, simplified bool) Formation {
	if size <= 0 {
		return Formation{}
	}
	if simplified && size == 4 {
		return Formation{Midfield: 4}
	}

	f := baseFormations[nearestTemplateSize(size)]
	for f.Total() < size {
		f.add(largestGroup(f), 1)
	}
	for f.Total() > size {
		floor := 0
		if f.Total()-1 >= 3 {
			floor = 1
		}
		f.add(smallestGroupAbove(f, floor), -1)
	}
	return f
}

func largestGroup(f Formation) models.PositionGroup {
	picked := growOrder[0]
	for _, g := range growOrder[1:] {
		if f.Count(g) > f.Count(picked) {
			picked = g
		}
	}
	return picked
}

// smallestGroupAbove returns the smallest line that still has more than floor positions.
func smallestGroupAbove(f Formation, floor int) models.PositionGroup {
	var picked models.PositionGroup
	for _, g := range shrinkOrder {
		c := f.Count(g)
		if c <= floor {
			continue
		}
		if picked == "" || c < f.Count(picked) {
			picked = g
		}
	}
	return picked
}

func nearestTemplateSize(size int) int {
	best, bestDist := 0, -1
	for k := range baseFormations {
		d := k - size
		if d < 0 {
			d = -d
		}
		// equal distance: prefer the larger template, shrinking keeps every line staffed
		if bestDist == -1 || d < bestDist || d == bestDist && k > best {
			best, bestDist = k, d
		}
	}
	return best
}
