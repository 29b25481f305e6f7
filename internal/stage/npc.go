package stage

// NPC ids for each difficulty (entry, regular, hard) of the bosses that
// reconciliation has to recognise.
var (
	maidenIDs = idSet(
		10814, 10815, 10816, 10817, 10818, 10819,
		8360, 8361, 8362, 8363, 8364, 8365,
		10822, 10823, 10824, 10825, 10826, 10827,
	)
	bloatIDs           = idSet(10812, 8359, 10813)
	nylocasVasiliasIDs = idSet(10787, 10788, 10789, 10790, 8354, 8355, 8356, 8357, 10807, 10808, 10809, 10810)
	sotetsegIDs        = idSet(10864, 8387, 10867, 10865, 8388, 10868)
	xarpusIDs          = idSet(10766, 10767, 10768, 8338, 8339, 8340, 10770, 10771, 10772)
	verzikP1IDs        = idSet(10831, 10832, 8370, 8371, 10848, 10849)
	verzikP2IDs        = idSet(10833, 10834, 8372, 8373, 10850, 10851)
	verzikP3IDs        = idSet(10835, 10836, 8374, 8375, 10852, 10853)
)

func idSet(ids ...int) map[int]struct{} {
	m := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func in(set map[int]struct{}, id int) bool {
	_, ok := set[id]
	return ok
}

func IsMaiden(id int) bool          { return in(maidenIDs, id) }
func IsBloat(id int) bool           { return in(bloatIDs, id) }
func IsNylocasVasilias(id int) bool { return in(nylocasVasiliasIDs, id) }
func IsSotetseg(id int) bool        { return in(sotetsegIDs, id) }
func IsXarpus(id int) bool          { return in(xarpusIDs, id) }
func IsVerzikP1(id int) bool        { return in(verzikP1IDs, id) }
func IsVerzikP2(id int) bool        { return in(verzikP2IDs, id) }
func IsVerzikP3(id int) bool        { return in(verzikP3IDs, id) }
func IsVerzik(id int) bool          { return IsVerzikP1(id) || IsVerzikP2(id) || IsVerzikP3(id) }

// HasVarbitHitpoints reports whether the NPC's health is exposed through a
// game variable. Such health bars read identically on every client, unlike
// the approximate per-client estimate used for all other NPCs.
func HasVarbitHitpoints(id int) bool {
	return IsMaiden(id) ||
		IsBloat(id) ||
		IsNylocasVasilias(id) ||
		IsSotetseg(id) ||
		IsXarpus(id) ||
		IsVerzik(id)
}
