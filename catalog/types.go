package catalog

// Character is a playable character.
type Character struct {
	ID      string `yaml:"id" json:"id" expr:"id"`
	Name    string `yaml:"name" json:"name" expr:"name"`
	Element string `yaml:"element" json:"element" expr:"element"`
	Weapon  string `yaml:"weapon" json:"weapon" expr:"weapon"`
	Rarity  int    `yaml:"rarity" json:"rarity" expr:"rarity"`
	Region  string `yaml:"region" json:"region" expr:"region"`
	Role    string `yaml:"role" json:"role" expr:"role"`
}

// Weapon is an equippable weapon.
type Weapon struct {
	ID         string `yaml:"id" json:"id" expr:"id"`
	Name       string `yaml:"name" json:"name" expr:"name"`
	Type       string `yaml:"type" json:"type" expr:"type"`
	Rarity     int    `yaml:"rarity" json:"rarity" expr:"rarity"`
	BaseAttack int    `yaml:"base_attack" json:"baseAttack" expr:"base_attack"`
	Substat    string `yaml:"substat" json:"substat" expr:"substat"`
}

// Material is an upgrade material.
type Material struct {
	ID     string `yaml:"id" json:"id" expr:"id"`
	Name   string `yaml:"name" json:"name" expr:"name"`
	Kind   string `yaml:"kind" json:"kind" expr:"kind"`
	Source string `yaml:"source" json:"source" expr:"source"`
}

// tierFile is the on-disk shape of one tier.
type tierFile struct {
	Tier    string              `yaml:"tier"`
	Entries map[string][]string `yaml:"entries"`
}

// Tier groups characters of equal standing, per role.
type Tier struct {
	Tier  string     `json:"tier"`
	Roles []TierRole `json:"roles"`
}

// TierRole lists the characters of one role in a tier, in ranking order.
type TierRole struct {
	Role       string      `json:"role"`
	Characters []Character `json:"characters"`
}
