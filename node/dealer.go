package node

import (
	"reflect"

	"struct-mapper/internal/common"
)

// Pair is a source/target type pair.
type Pair struct{ Src, Dst reflect.Type }

// String renders the pair as "Src -> Dst".
func (p Pair) String() string {
	return common.TypeName(p.Src) + " -> " + common.TypeName(p.Dst)
}

// Dealer is a work queue of type pairs. Each pair is dealt at most once,
// in the order it was first needed.
type Dealer struct {
	needs []Pair
	done  map[Pair]struct{}
}

func (d *Dealer) NextNeeds() (src, dst reflect.Type, ok bool) {
	for len(d.needs) > 0 {
		pair := d.needs[0]
		d.needs = d.needs[1:]

		if _, exists := d.done[pair]; !exists {
			d.Done(pair.Src, pair.Dst)

			return pair.Src, pair.Dst, true
		}
	}

	return
}

func (d *Dealer) Needs(src, dst reflect.Type) {
	pair := Pair{Src: src, Dst: dst}
	if _, exists := d.done[pair]; !exists {
		d.needs = append(d.needs, pair)
	}
}

func (d *Dealer) Done(src, dst reflect.Type) {
	if d.done == nil {
		d.done = make(map[Pair]struct{})
	}

	d.done[Pair{Src: src, Dst: dst}] = struct{}{}
}

// IsDone reports whether the pair was already dealt or marked done.
func (d *Dealer) IsDone(src, dst reflect.Type) bool {
	_, ok := d.done[Pair{Src: src, Dst: dst}]
	return ok
}
