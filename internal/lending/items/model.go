package items

import "time"

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusUnavailable Status = "UNAVAILABLE"
)

type Size string

const (
	SizeXS Size = "XS"
	SizeS  Size = "S"
	SizeM  Size = "M"
	SizeL  Size = "L"
	SizeXL Size = "XL"
)

type Gender string

const (
	GenderDamen  Gender = "DAMEN"
	GenderHerren Gender = "HERREN"
)

type Condition string

const (
	ConditionNeu       Condition = "NEU"
	ConditionGebraucht Condition = "GEBRAUCHT"
)

// Location 貸出拠点（キャンパス）。拠点別クエリのパーティションキー。
type Location string

const (
	LocationLothstrasse Location = "LOTHSTRASSE"
	LocationPasing      Location = "PASING"
	LocationKarlstrasse Location = "KARLSTRASSE"
)

type Item struct {
	ID            string
	Name          string
	Description   string
	Brand         string
	ImageURL      string
	Size          Size
	Gender        Gender
	Condition     Condition
	Status        Status
	Location      Location
	AvailableFrom time.Time
	CreatedAt     time.Time
}

// Loanable 貸出可否。status が AVAILABLE かつ available_from を過ぎていること。
// available_from 当日は貸出可。
func (i *Item) Loanable(today time.Time) bool {
	return i.Status == StatusAvailable && !DateOnly(today).Before(DateOnly(i.AvailableFrom))
}

// DateOnly 時刻を落として日付だけにする（UTC基準）
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validSize(v Size) bool {
	switch v {
	case SizeXS, SizeS, SizeM, SizeL, SizeXL:
		return true
	}
	return false
}

func validGender(v Gender) bool {
	return v == GenderDamen || v == GenderHerren
}

func validCondition(v Condition) bool {
	return v == ConditionNeu || v == ConditionGebraucht
}

func validLocation(v Location) bool {
	switch v {
	case LocationLothstrasse, LocationPasing, LocationKarlstrasse:
		return true
	}
	return false
}
