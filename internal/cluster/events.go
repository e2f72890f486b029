package cluster

// Event is something the cluster tells the scheduler.
type Event interface {
	isEvent()
}

// Registered is the first event of every driver.
type Registered struct {
	FrameworkId string
}

type OfferReceived struct {
	Offer Offer
}

type OfferRescinded struct {
	OfferId OfferId
}

type StatusUpdate struct {
	Status TaskStatus
}

type AgentLost struct {
	AgentId AgentId
}

// ErrorReceived reports an unrecoverable error in the cluster itself.
type ErrorReceived struct {
	Message string
}

func (Registered) isEvent()     {}
func (OfferReceived) isEvent()  {}
func (OfferRescinded) isEvent() {}
func (StatusUpdate) isEvent()   {}
func (AgentLost) isEvent()      {}
func (ErrorReceived) isEvent()  {}
