package mockbackend

import (
	"sync"
	"time"
)

type Payment struct {
	ID          int       `json:"id"`
	Amount      string    `json:"amount"`
	Description string    `json:"description,omitempty"`
	Student     string    `json:"student,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// paymentStore keeps the payments of every school apart
type paymentStore struct {
	lock     sync.RWMutex
	nextID   int
	bySchool map[string][]Payment
}

func (p *paymentStore) list(schoolCode string) []Payment {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return append([]Payment{}, p.bySchool[schoolCode]...)
}

func (p *paymentStore) add(schoolCode string, payment Payment) Payment {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.nextID++
	payment.ID = p.nextID
	payment.CreatedAt = time.Now().UTC()
	p.bySchool[schoolCode] = append(p.bySchool[schoolCode], payment)
	return payment
}

func newPaymentStore() *paymentStore {
	return &paymentStore{bySchool: map[string][]Payment{}}
}
