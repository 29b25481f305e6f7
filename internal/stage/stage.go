// Package stage enumerates the stages of a recorded challenge and carries the
// fixed world geometry that per-stage movement rules depend on.
package stage

import (
	"fmt"
	"strconv"
	"strings"
)

// Stage identifies one timed phase of a challenge.
type Stage int

const (
	Unknown Stage = iota

	TobMaiden
	TobBloat
	TobNylocas
	TobSotetseg
	TobXarpus
	TobVerzik

	CoxTekton
	CoxCrabs
	CoxIceDemon
	CoxShamans
	CoxVanguards
	CoxThieving
	CoxVespula
	CoxTightrope
	CoxGuardians
	CoxVasa
	CoxMystics
	CoxMuttadiles
	CoxOlm

	ToaApmeken
	ToaBaba
	ToaScabaras
	ToaKephri
	ToaHet
	ToaAkkha
	ToaCrondis
	ToaZebak
	ToaWardens

	ColosseumWave1
	ColosseumWave2
	ColosseumWave3
	ColosseumWave4
	ColosseumWave5
	ColosseumWave6
	ColosseumWave7
	ColosseumWave8
	ColosseumWave9
	ColosseumWave10
	ColosseumWave11
	ColosseumWave12

	MokhaiotlDelve1
	MokhaiotlDelve2
	MokhaiotlDelve3
	MokhaiotlDelve4
	MokhaiotlDelve5
	MokhaiotlDelve6
	MokhaiotlDelve7
	MokhaiotlDelve8
	MokhaiotlDelve8Plus
)

var names = map[Stage]string{
	Unknown: "UNKNOWN",

	TobMaiden:   "TOB_MAIDEN",
	TobBloat:    "TOB_BLOAT",
	TobNylocas:  "TOB_NYLOCAS",
	TobSotetseg: "TOB_SOTETSEG",
	TobXarpus:   "TOB_XARPUS",
	TobVerzik:   "TOB_VERZIK",

	CoxTekton:     "COX_TEKTON",
	CoxCrabs:      "COX_CRABS",
	CoxIceDemon:   "COX_ICE_DEMON",
	CoxShamans:    "COX_SHAMANS",
	CoxVanguards:  "COX_VANGUARDS",
	CoxThieving:   "COX_THIEVING",
	CoxVespula:    "COX_VESPULA",
	CoxTightrope:  "COX_TIGHTROPE",
	CoxGuardians:  "COX_GUARDIANS",
	CoxVasa:       "COX_VASA",
	CoxMystics:    "COX_MYSTICS",
	CoxMuttadiles: "COX_MUTTADILES",
	CoxOlm:        "COX_OLM",

	ToaApmeken:  "TOA_APMEKEN",
	ToaBaba:     "TOA_BABA",
	ToaScabaras: "TOA_SCABARAS",
	ToaKephri:   "TOA_KEPHRI",
	ToaHet:      "TOA_HET",
	ToaAkkha:    "TOA_AKKHA",
	ToaCrondis:  "TOA_CRONDIS",
	ToaZebak:    "TOA_ZEBAK",
	ToaWardens:  "TOA_WARDENS",

	MokhaiotlDelve8Plus: "MOKHAIOTL_DELVE_8PLUS",
}

var byName map[string]Stage

func init() {
	for s := ColosseumWave1; s <= ColosseumWave12; s++ {
		names[s] = "COLOSSEUM_WAVE_" + strconv.Itoa(int(s-ColosseumWave1)+1)
	}
	for s := MokhaiotlDelve1; s <= MokhaiotlDelve8; s++ {
		names[s] = "MOKHAIOTL_DELVE_" + strconv.Itoa(int(s-MokhaiotlDelve1)+1)
	}

	byName = make(map[string]Stage, len(names))
	for s, n := range names {
		byName[n] = s
	}
}

// String returns the stable wire name of the stage.
func (s Stage) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Parse converts a wire name into a Stage. Matching is case-insensitive.
func Parse(name string) (Stage, error) {
	if s, ok := byName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return s, nil
	}
	return Unknown, fmt.Errorf("unknown stage %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsTheatre reports whether the stage is a Theatre of Blood room.
func (s Stage) IsTheatre() bool { return s >= TobMaiden && s <= TobVerzik }

// IsChambers reports whether the stage is a Chambers of Xeric room.
func (s Stage) IsChambers() bool { return s >= CoxTekton && s <= CoxOlm }

// IsTombs reports whether the stage is a Tombs of Amascut room.
func (s Stage) IsTombs() bool { return s >= ToaApmeken && s <= ToaWardens }

// IsColosseum reports whether the stage is a Colosseum wave.
func (s Stage) IsColosseum() bool { return s >= ColosseumWave1 && s <= ColosseumWave12 }

// IsMokhaiotl reports whether the stage is a Mokhaiotl delve.
func (s Stage) IsMokhaiotl() bool { return s >= MokhaiotlDelve1 && s <= MokhaiotlDelve8Plus }
