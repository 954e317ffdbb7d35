package store

import "metasol_bot/internal/models"

// Kind names a per-user collection.
type Kind string

const (
	KindPositions Kind = "positions"
	KindLimits    Kind = "limits"
	KindDca       Kind = "dca"
)

// Store gives per-user, per-kind access to persisted collections. Load
// returns records in insertion order, newest last; a missing collection is an
// empty slice, not an error. Save replaces the whole collection.
//
// The store does no locking. Callers read-modify-write full collections, so
// two concurrent writers to the same user+kind (a sweep and a flow commit)
// race last-write-wins and can drop the other's change. Known hazard carried
// over from the source system; sweeps run sequentially per tick to keep the
// window as small as possible.
type Store interface {
	LoadPositions(userID int64) ([]models.Position, error)
	SavePositions(userID int64, positions []models.Position) error

	LoadLimitOrders(userID int64) ([]models.LimitOrder, error)
	SaveLimitOrders(userID int64, orders []models.LimitOrder) error

	LoadSchedules(userID int64) ([]models.DcaSchedule, error)
	SaveSchedules(userID int64, schedules []models.DcaSchedule) error

	// Users lists every user id that has a collection of the given kind.
	Users(kind Kind) ([]int64, error)
}
