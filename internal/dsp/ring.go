package dsp

// ring is a fixed-size circular buffer. pos always points at the next
// slot to be written; written counts total appends since creation.
type ring[T any] struct {
	buf     []T
	pos     int
	written int
}

func newRing[T any](size int, fill func() T) *ring[T] {
	r := &ring[T]{buf: make([]T, size)}
	for i := range r.buf {
		r.buf[i] = fill()
	}
	return r
}

func (r *ring[T]) append(v T) {
	r.buf[r.pos] = v
	r.pos = (r.pos + 1) % len(r.buf)
	r.written++
}

// at indexes relative slots with wrap-around; negative indexes reach back
// from the current write position.
func (r *ring[T]) at(i int) T {
	n := len(r.buf)
	return r.buf[((i%n)+n)%n]
}

// sampleRing holds the most recent fftSize PCM samples, written in
// hop-sized batches.
type sampleRing struct {
	buf [fftSize]int16
	pos int
}

func (r *sampleRing) push(batch []int16) {
	for _, s := range batch {
		r.buf[r.pos] = s
		r.pos = (r.pos + 1) % fftSize
	}
}

// fill writes the buffered samples into dst oldest-first.
func (r *sampleRing) fill(dst *[fftSize]float64) {
	for i := 0; i < fftSize; i++ {
		dst[i] = float64(r.buf[(r.pos+i)%fftSize])
	}
}
