package cards

import (
	"fmt"
	"sort"
)

// Deck composition limits.
const (
	DeckSize            = 20
	MaxCopies           = 2
	MaxDisruptionCopies = 1
)

// Category groups cards for deck limits and search.
type Category string

const (
	CategoryBoard      Category = "board"
	CategoryDisruption Category = "disruption"
	CategoryDefense    Category = "defense"
	CategorySupport    Category = "support"
)

// categoryLabels maps the Japanese labels older clients send.
var categoryLabels = map[string]Category{
	"盤面操作": CategoryBoard,
	"妨害":   CategoryDisruption,
	"防御":   CategoryDefense,
	"補助":   CategorySupport,
}

// ParseCategory accepts a wire value or its Japanese label.
func ParseCategory(s string) (Category, bool) {
	if c, ok := categoryLabels[s]; ok {
		return c, true
	}
	c := Category(s)
	return c, c.Valid()
}

// UnmarshalText normalizes Japanese labels. Unknown values are kept as is
// and fail Valid.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, _ := ParseCategory(string(text))
	*c = parsed
	return nil
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryBoard, CategoryDisruption, CategoryDefense, CategorySupport:
		return true
	}
	return false
}

// Card identifiers.
const (
	Expand        = 1
	Shrink        = 2
	Push          = 3
	Slide         = 4
	Teleport      = 5
	Copy          = 6
	Lock          = 7
	DoubleLock    = 8
	Reverse       = 9
	ForcedMove    = 10
	Disrupt       = 11
	Wild          = 12
	LineBreak     = 13
	ForcedPass    = 14
	Protect       = 15
	Dispel        = 16
	Nullify       = 17
	DrawOne       = 18
	DrawTwo       = 19
	Reroll        = 20
	Reclaim       = 21
	CostReduction = 22
	Search        = 23
	Foresee       = 24
	WildPlacement = 25
	LineSplit     = 26
	Swap          = 27
	Fortify       = 28
	Occupy        = 29
)

// Card is an immutable catalog entry.
type Card struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	NeedsTarget bool     `json:"needsTarget"`
	MultiStep   bool     `json:"isMultiStep"`
}

var catalog = map[int]Card{
	Expand:        {ID: Expand, Name: "盤面拡張", Category: CategoryBoard, NeedsTarget: true},
	Shrink:        {ID: Shrink, Name: "盤面縮小", Category: CategoryBoard, NeedsTarget: true},
	Push:          {ID: Push, Name: "プッシュ", Category: CategoryBoard, NeedsTarget: true},
	Slide:         {ID: Slide, Name: "スライド", Category: CategoryBoard, NeedsTarget: true},
	Teleport:      {ID: Teleport, Name: "テレポート", Category: CategoryBoard, NeedsTarget: true},
	Copy:          {ID: Copy, Name: "コピー", Category: CategoryBoard, NeedsTarget: true},
	Lock:          {ID: Lock, Name: "封鎖", Category: CategoryDisruption, NeedsTarget: true},
	DoubleLock:    {ID: DoubleLock, Name: "二重封鎖", Category: CategoryDisruption, NeedsTarget: true},
	Reverse:       {ID: Reverse, Name: "逆転", Category: CategoryDisruption, NeedsTarget: true},
	ForcedMove:    {ID: ForcedMove, Name: "強制移動", Category: CategoryDisruption, NeedsTarget: true},
	Disrupt:       {ID: Disrupt, Name: "分断", Category: CategoryDisruption, NeedsTarget: true},
	Wild:          {ID: Wild, Name: "ワイルド", Category: CategoryDisruption, NeedsTarget: true},
	LineBreak:     {ID: LineBreak, Name: "ラインブレイク", Category: CategoryDisruption},
	ForcedPass:    {ID: ForcedPass, Name: "強制パス", Category: CategoryDisruption},
	Protect:       {ID: Protect, Name: "保護", Category: CategoryDefense, NeedsTarget: true},
	Dispel:        {ID: Dispel, Name: "解除", Category: CategoryDefense, NeedsTarget: true},
	Nullify:       {ID: Nullify, Name: "無効化", Category: CategoryDefense, NeedsTarget: true},
	DrawOne:       {ID: DrawOne, Name: "1ドロー", Category: CategorySupport},
	DrawTwo:       {ID: DrawTwo, Name: "2ドロー", Category: CategorySupport},
	Reroll:        {ID: Reroll, Name: "リロール", Category: CategorySupport, NeedsTarget: true},
	Reclaim:       {ID: Reclaim, Name: "リクレイム", Category: CategorySupport},
	CostReduction: {ID: CostReduction, Name: "コスト軽減", Category: CategorySupport},
	Search:        {ID: Search, Name: "サーチ", Category: CategorySupport, NeedsTarget: true, MultiStep: true},
	Foresee:       {ID: Foresee, Name: "予知", Category: CategorySupport, NeedsTarget: true, MultiStep: true},
	WildPlacement: {ID: WildPlacement, Name: "ワイルド配置", Category: CategorySupport, NeedsTarget: true},
	LineSplit:     {ID: LineSplit, Name: "ライン分割", Category: CategoryBoard, NeedsTarget: true},
	Swap:          {ID: Swap, Name: "入替", Category: CategoryDisruption, NeedsTarget: true},
	Fortify:       {ID: Fortify, Name: "固定化", Category: CategoryDefense, NeedsTarget: true},
	Occupy:        {ID: Occupy, Name: "占拠", Category: CategoryDisruption, NeedsTarget: true},
}

// Get looks up a card by id.
func Get(id int) (Card, bool) {
	c, ok := catalog[id]
	return c, ok
}

// All returns the catalog ordered by id.
func All() []Card {
	out := make([]Card, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Name returns the display name of a card, or a generic label for unknown ids.
func Name(id int) string {
	if c, ok := catalog[id]; ok {
		return c.Name
	}
	return fmt.Sprintf("card %d", id)
}

// InCategory reports whether id belongs to category.
func InCategory(id int, category Category) bool {
	c, ok := catalog[id]
	return ok && c.Category == category
}

// CopyLimit returns how many copies of a card a deck may hold.
func CopyLimit(c Card) int {
	if c.Category == CategoryDisruption {
		return MaxDisruptionCopies
	}
	return MaxCopies
}

// ValidateDeck checks size, id validity and per-card copy limits.
func ValidateDeck(deck []int) error {
	if len(deck) != DeckSize {
		return fmt.Errorf("deck must contain exactly %d cards, got %d", DeckSize, len(deck))
	}
	counts := make(map[int]int, len(deck))
	for _, id := range deck {
		c, ok := catalog[id]
		if !ok {
			return fmt.Errorf("unknown card id %d", id)
		}
		counts[id]++
		if counts[id] > CopyLimit(c) {
			return fmt.Errorf("%s may appear at most %d times", c.Name, CopyLimit(c))
		}
	}
	return nil
}

// DefaultDeck returns a balanced legal deck used for quick matches and tests.
func DefaultDeck() []int {
	return []int{
		Expand, Push, Slide, Teleport,
		Lock, Reverse, Disrupt, ForcedPass,
		Protect, Dispel, Nullify,
		DrawOne, DrawOne, DrawTwo, Reroll, Reclaim,
		Copy, ForcedMove, Wild, Search,
	}
}
