package models

// Transform is the placement of one named object in the shared scene.
type Transform struct {
	Name     string     `json:"name"`
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
	Scale    [3]float64 `json:"scale"`
}
