package orderbook

// PriceLevel is a FIFO queue of same-side orders at a single price.
type PriceLevel struct {
	Price int64
	Side  Side

	head *Order
	tail *Order

	total int64
	count int
}

func (p *PriceLevel) Enqueue(o *Order) {
	mustf(o.Size > 0, "LADDER_CORRUPTION: enqueue order %d with size %d", o.ID, o.Size)
	mustf(o.Side == p.Side, "LADDER_CORRUPTION: %s order %d on %s level %d", o.Side, o.ID, p.Side, p.Price)

	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.total += o.Size
	p.count++
}

func (p *PriceLevel) PopHead() *Order {
	o := p.head
	if o == nil {
		return nil
	}
	p.unlink(o)
	return o
}

// Remove unlinks o, which must belong to this level.
func (p *PriceLevel) Remove(o *Order) {
	mustf(o == p.head || o.prev != nil, "LADDER_CORRUPTION: order %d not linked at level %d", o.ID, p.Price)
	p.unlink(o)
}

func (p *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next = nil
	o.prev = nil

	p.total -= o.Size
	p.count--
	mustf(p.total >= 0 && p.count >= 0, "LADDER_CORRUPTION: level %d total %d count %d", p.Price, p.total, p.count)
}

// take trades qty out of the resting order o in place.
func (p *PriceLevel) take(o *Order, qty int64) {
	mustf(qty > 0 && qty <= o.Size, "LADDER_CORRUPTION: take %d from order %d size %d", qty, o.ID, o.Size)
	o.Size -= qty
	o.Filled += qty
	p.total -= qty
}

func (p *PriceLevel) Empty() bool {
	return p.head == nil
}

func (p *PriceLevel) Head() *Order {
	return p.head
}

// TotalSize is the aggregate resting size.
func (p *PriceLevel) TotalSize() int64 {
	return p.total
}

func (p *PriceLevel) Len() int {
	return p.count
}
