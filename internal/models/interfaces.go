package models

type IDGenerator interface {
	ID() (string, error)
}
