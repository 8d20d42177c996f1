package opt

// Welford keeps a numerically stable running mean
type Welford struct {
	count int
	mean  float64
}

// Update adds a sample
func (w *Welford) Update(x float64) {
	w.count++
	w.mean += (x - w.mean) / float64(w.count)
}

// Mean returns the mean of all samples, zero when empty
func (w *Welford) Mean() float64 { return w.mean }

// Count returns the number of samples
func (w *Welford) Count() int { return w.count }

// Reset forgets all samples
func (w *Welford) Reset() {
	w.count = 0
	w.mean = 0
}
