package models

// Deck is the immutable card data a room is bound to at creation.
type Deck struct {
	Black []string `json:"black" yaml:"black"`
	White []string `json:"white" yaml:"white"`
}

// BlackCard returns the black card at idx, or false when idx is out of range.
func (d *Deck) BlackCard(idx int) (string, bool) {
	if d == nil || idx < 0 || idx >= len(d.Black) {
		return "", false
	}
	return d.Black[idx], true
}
