// Package set implements dense integer sets.
// They hold virtual register ids in def/use sets.
package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	Bitmap struct {
		b []uint64
	}
)

func MakeBitmap(Len int) Bitmap {
	return Bitmap{
		b: make([]uint64, (Len+63)/64),
	}
}

// Of returns a set containing the given elements.
func Of(l ...int) Bitmap {
	s := MakeBitmap(0)

	for _, x := range l {
		s.Set(x)
	}

	return s
}

func (s *Bitmap) Set(i int) {
	i, j := s.ij(i)

	s.grow(i)

	s.b[i] |= 1 << j
}

func (s *Bitmap) Clear(i int) {
	i, j := s.ij(i)

	if i >= len(s.b) {
		return
	}

	s.b[i] &^= 1 << j
}

func (s *Bitmap) IsSet(i int) bool {
	i, j := s.ij(i)

	if i >= len(s.b) {
		return false
	}

	return s.b[i]&(1<<j) != 0
}

func (s *Bitmap) Or(x Bitmap) {
	if len(x.b) != 0 {
		s.grow(len(x.b) - 1)
	}

	for i, x := range x.b {
		s.b[i] |= x
	}
}

func (s *Bitmap) AndNot(x Bitmap) {
	for i, x := range x.b {
		if i == len(s.b) {
			break
		}

		s.b[i] &^= x
	}
}

func (s *Bitmap) Equal(x Bitmap) bool {
	n := len(s.b)
	if len(x.b) > n {
		n = len(x.b)
	}

	for i := 0; i < n; i++ {
		if s.word(i) != x.word(i) {
			return false
		}
	}

	return true
}

func (s *Bitmap) Size() (r int) {
	if s == nil {
		return 0
	}

	for _, c := range s.b {
		r += bits.OnesCount64(c)
	}

	return r
}

func (s *Bitmap) Range(f func(i int) bool) {
	for i, x := range s.b {
		for x != 0 {
			j := bits.TrailingZeros64(x)
			x &^= 1 << j

			if !f(i*64 + j) {
				return
			}
		}
	}
}

// Slice returns set elements in ascending order.
func (s *Bitmap) Slice() []int {
	r := make([]int, 0, s.Size())

	s.Range(func(i int) bool {
		r = append(r, i)
		return true
	})

	return r
}

func (s Bitmap) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s.b == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(i int) bool {
		b = e.AppendInt(b, i)

		return true
	})

	b = e.AppendBreak(b)

	return b
}

func (s *Bitmap) word(i int) uint64 {
	if i >= len(s.b) {
		return 0
	}

	return s.b[i]
}

func (s *Bitmap) ij(pos int) (i int, j int) {
	i, j = pos/64, pos%64

	return i, j
}

func (s *Bitmap) grow(i int) {
	for i >= len(s.b) {
		s.b = append(s.b, 0)
	}
}
