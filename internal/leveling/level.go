package leveling

// XPPerLevel is the flat per-level cost. The curve is intentionally
// linear: level N starts at exactly N*200 XP.
const XPPerLevel = 200

func LevelForXP(xp int) int {
	if xp <= 0 {
		return 0
	}
	return xp / XPPerLevel
}

func XPForLevel(level int) int {
	if level <= 0 {
		return 0
	}
	return level * XPPerLevel
}

// Progress reports how far into the current level xp sits and how much
// the level costs in total. Used for progress bars.
func Progress(xp int) (into, needed int) {
	if xp < 0 {
		xp = 0
	}
	return xp % XPPerLevel, XPPerLevel
}
