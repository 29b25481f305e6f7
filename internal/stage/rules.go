package stage

// SotetsegMaze describes the two regions a Sotetseg maze teleports players
// between and the fixed tiles the teleports land on.
type SotetsegMaze struct {
	Room            Area
	Underworld      Area
	OverworldStart  Coords
	UnderworldStart Coords
	End             Coords
}

// IsMazeTile reports whether c is one of the maze's teleport destinations.
func (m *SotetsegMaze) IsMazeTile(c Coords) bool {
	return c == m.OverworldStart || c == m.UnderworldStart || c == m.End
}

// Bounce describes a boss mechanic that throws a player standing in melee
// range a fixed distance away from the boss.
type Bounce struct {
	Center    Coords
	Distances []int

	// MeleeArea is where a player must stand to be bounced.
	MeleeArea Area

	// Attack is the NPC attack that performs the bounce.
	Attack string
}

// LandsAt reports whether a bounce from the center could leave a player at c.
func (b *Bounce) LandsAt(c Coords) bool {
	d := Chebyshev(b.Center, c)
	for _, want := range b.Distances {
		if d == want {
			return true
		}
	}
	return false
}

// Knockback describes a single-target knockback that pushes a player out of
// an area to an exact distance from a center tile.
type Knockback struct {
	Center   Coords
	Distance int
	Area     Area
	Attack   string

	// Window is how many ticks before the move the attack may have landed.
	Window int
}

// Rules collects the scripted teleports of a stage. A player moving faster
// than they can run is only legitimate when one of these explains it.
type Rules struct {
	RespawnTiles []Coords
	Maze         *SotetsegMaze
	Bounce       *Bounce
	Knockback    *Knockback
}

// IsRespawnTile reports whether c is a tile players reappear on after dying.
func (r Rules) IsRespawnTile(c Coords) bool {
	for _, t := range r.RespawnTiles {
		if t == c {
			return true
		}
	}
	return false
}

var (
	sotetsegMaze = &SotetsegMaze{
		Room:            Area{X: 3271, Y: 4304, Width: 17, Height: 30},
		Underworld:      Area{X: 3354, Y: 4309, Width: 14, Height: 22},
		OverworldStart:  Coords{X: 3274, Y: 4307},
		UnderworldStart: Coords{X: 3360, Y: 4309},
		End:             Coords{X: 3275, Y: 4327},
	}

	verzikCenter = Coords{X: 3167, Y: 4311}
	verzikBounce = &Bounce{
		Center:    verzikCenter,
		Distances: []int{5, 6},
		MeleeArea: Around(verzikCenter, 2),
		Attack:    "TOB_VERZIK_P2_BOUNCE",
	}

	// Delves are instanced in three map regions. The arena sits at the same
	// place relative to each region's base tile.
	mokhaiotlArena      = Coords{X: 23, Y: 4}
	mokhaiotlKnockbacks = map[Coords]*Knockback{
		{X: 1288, Y: 9552}: mokhaiotlKnockback(Coords{X: 1288, Y: 9552}),
		{X: 3400, Y: 6416}: mokhaiotlKnockback(Coords{X: 3400, Y: 6416}),
		{X: 3528, Y: 6416}: mokhaiotlKnockback(Coords{X: 3528, Y: 6416}),
	}

	// Chambers rooms send dead players back to the raid's starting tile.
	chambersRespawn = []Coords{{X: 3299, Y: 5189}}
)

// RulesFor returns the movement rules that apply to a stage.
func RulesFor(s Stage) Rules {
	switch {
	case s == TobSotetseg:
		return Rules{Maze: sotetsegMaze}
	case s == TobVerzik:
		return Rules{Bounce: verzikBounce}
	case s.IsMokhaiotl():
		return Rules{Knockback: mokhaiotlKnockbacks[mokhaiotlRegion(s)]}
	case s.IsChambers():
		return Rules{RespawnTiles: chambersRespawn}
	default:
		return Rules{}
	}
}

func mokhaiotlKnockback(region Coords) *Knockback {
	center := Coords{X: region.X + mokhaiotlArena.X, Y: region.Y + mokhaiotlArena.Y}
	return &Knockback{
		Center:   center,
		Distance: 4,
		Area:     Around(center, 3),
		Attack:   "MOKHAIOTL_MELEE",
		Window:   3,
	}
}

// mokhaiotlRegion returns the base tile of the map region a delve is
// instanced in.
func mokhaiotlRegion(s Stage) Coords {
	switch s {
	case MokhaiotlDelve1:
		return Coords{X: 1288, Y: 9552}
	case MokhaiotlDelve2, MokhaiotlDelve3, MokhaiotlDelve4, MokhaiotlDelve5:
		return Coords{X: 3400, Y: 6416}
	default:
		return Coords{X: 3528, Y: 6416}
	}
}
