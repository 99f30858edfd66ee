package selfstate

// Quality names one of the eight qualities of the self vector.
type Quality string

const (
	Curiosity     Quality = "curiosity"
	Calm          Quality = "calm"
	Clarity       Quality = "clarity"
	Compassion    Quality = "compassion"
	Confidence    Quality = "confidence"
	Courage       Quality = "courage"
	Creativity    Quality = "creativity"
	Connectedness Quality = "connectedness"
)

// Qualities lists the eight vector dimensions in canonical order.
var Qualities = []Quality{
	Curiosity, Calm, Clarity, Compassion,
	Confidence, Courage, Creativity, Connectedness,
}

// Vector is the eight-dimensional quality vector. Each value is in [0,1].
type Vector map[Quality]float64

// Uniform returns a vector with every quality set to the given value.
func Uniform(value float64) Vector {
	v := make(Vector, len(Qualities))
	for _, q := range Qualities {
		v[q] = value
	}
	return v
}

// Composite returns the unweighted mean of the eight quality values.
// Qualities absent from the map count as zero.
func (v Vector) Composite() float64 {
	var sum float64
	for _, q := range Qualities {
		sum += v[q]
	}
	return sum / float64(len(Qualities))
}

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for q, value := range v {
		out[q] = value
	}
	return out
}
