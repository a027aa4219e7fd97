package scaling

// StaticPolicy never resizes the pool.
type StaticPolicy struct{}

func NewStaticPolicy() *StaticPolicy {
	return &StaticPolicy{}
}

func (p *StaticPolicy) Decide(PoolState) Action {
	return None
}
