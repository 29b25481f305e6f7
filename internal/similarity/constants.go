package similarity

// AttackSignals weights the outcomes of comparing one actor's attacks on two
// ticks.
type AttackSignals struct {
	Contradictory float64 `yaml:"contradictory" json:"contradictory"`
	Positive      float64 `yaml:"positive" json:"positive"`
	WeakPositive  float64 `yaml:"weak_positive" json:"weak_positive"`
	WeakNegative  float64 `yaml:"weak_negative" json:"weak_negative"`
	Min           float64 `yaml:"min" json:"min"`
	Max           float64 `yaml:"max" json:"max"`
}

// Constants are the tunable weights and thresholds of the Scorer.
type Constants struct {
	HitpointsWeight         float64 `yaml:"hitpoints_weight" json:"hitpoints_weight"`
	VarbitHitpointsK        float64 `yaml:"varbit_hitpoints_k" json:"varbit_hitpoints_k"`
	VarbitHitpointsWeight   float64 `yaml:"varbit_hitpoints_weight" json:"varbit_hitpoints_weight"`
	RegularHitpointsK       float64 `yaml:"regular_hitpoints_k" json:"regular_hitpoints_k"`
	RegularHitpointsWeight  float64 `yaml:"regular_hitpoints_weight" json:"regular_hitpoints_weight"`
	HitpointsDeltaThreshold float64 `yaml:"hitpoints_delta_threshold" json:"hitpoints_delta_threshold"`
	HitpointsMax            float64 `yaml:"hitpoints_max" json:"hitpoints_max"`

	AttacksWeight float64       `yaml:"attacks_weight" json:"attacks_weight"`
	PlayerAttacks AttackSignals `yaml:"player_attacks" json:"player_attacks"`
	NpcAttacks    AttackSignals `yaml:"npc_attacks" json:"npc_attacks"`

	PrayersWeight   float64 `yaml:"prayers_weight" json:"prayers_weight"`
	PrayersPositive float64 `yaml:"prayers_positive" json:"prayers_positive"`
	PrayersNegative float64 `yaml:"prayers_negative" json:"prayers_negative"`
	PrayersMin      float64 `yaml:"prayers_min" json:"prayers_min"`
	PrayersMax      float64 `yaml:"prayers_max" json:"prayers_max"`

	DeathsWeight        float64 `yaml:"deaths_weight" json:"deaths_weight"`
	PlayerDeathPositive float64 `yaml:"player_death_positive" json:"player_death_positive"`
	NpcDeathPositive    float64 `yaml:"npc_death_positive" json:"npc_death_positive"`
	NpcDeathNegative    float64 `yaml:"npc_death_negative" json:"npc_death_negative"`
	DeathsMin           float64 `yaml:"deaths_min" json:"deaths_min"`
	DeathsMax           float64 `yaml:"deaths_max" json:"deaths_max"`
}

// DefaultConstants returns the empirically tuned scoring constants.
func DefaultConstants() Constants {
	return Constants{
		HitpointsWeight:         0.15,
		VarbitHitpointsK:        50,
		VarbitHitpointsWeight:   10,
		RegularHitpointsK:       5,
		RegularHitpointsWeight:  2,
		HitpointsDeltaThreshold: 0.4,
		HitpointsMax:            10,

		AttacksWeight: 0.5,
		PlayerAttacks: AttackSignals{
			Contradictory: -10,
			Positive:      2,
			WeakPositive:  0.5,
			WeakNegative:  -0.2,
			Min:           -20,
			Max:           10,
		},
		// NPCs attack less often than players, so each one says more.
		NpcAttacks: AttackSignals{
			Contradictory: -10,
			Positive:      4,
			WeakPositive:  1,
			WeakNegative:  -0.5,
			Min:           -10,
			Max:           10,
		},

		PrayersWeight:   0.2,
		PrayersPositive: 1,
		PrayersNegative: -1,
		PrayersMin:      -5,
		PrayersMax:      5,

		DeathsWeight:        0.1,
		PlayerDeathPositive: 0.5,
		NpcDeathPositive:    1,
		NpcDeathNegative:    -1,
		DeathsMin:           -3,
		DeathsMax:           3,
	}
}
