package rarity

// PlayHead carries musical-time metadata to every node on every block. It is
// immutable from the node's point of view — only the host updates it between
// blocks.
type PlayHead struct {
	Upper              uint8 // time signature numerator
	Lower              uint8 // time signature denominator
	Div                uint8 // subdivision
	SamplesPerQuarter  float64
	SamplesFromLastBar float64
}
