package classify

import "github.com/civicwatch/intake/internal/domain"

// categoryKeywords maps each keyworded category to its lexicon. The
// catch-all category other has no entry. Entries are matched against
// normalized text, so multi-word phrases are allowed.
var categoryKeywords = map[domain.Category][]string{
	domain.CategoryTheft: {
		"theft", "stolen", "steal", "stole", "robbery", "robbed",
		"burglary", "burglar", "shoplifting", "shoplifter", "pickpocket",
		"break in", "broke into", "carjacking", "looting", "mugging",
		"mugged", "purse snatch", "bike stolen", "package stolen",
	},
	domain.CategoryAssault: {
		"assault", "assaulted", "attack", "attacked", "fight", "fighting",
		"punched", "stabbed", "stabbing", "beaten", "beating", "shooting",
		"shot", "gunfire", "gun", "knife", "weapon", "violence", "violent",
		"threatened", "threatening",
	},
	domain.CategoryVandalism: {
		"vandalism", "vandalized", "graffiti", "spray paint", "smashed",
		"broken window", "broken windows", "slashed tires", "slashed",
		"defaced", "damaged property", "keyed", "egged",
	},
	domain.CategorySuspiciousActivity: {
		"suspicious", "loitering", "lurking", "prowler", "prowling",
		"casing", "trespassing", "trespasser", "stranger", "peeping",
		"following me", "unknown person", "strange vehicle", "strange van",
	},
	domain.CategoryTrafficIncident: {
		"crash", "collision", "accident", "hit and run", "rear ended",
		"ran a red", "speeding", "reckless driving", "drunk driver",
		"road rage", "pedestrian struck", "cyclist hit", "pileup",
		"rollover", "fender bender",
	},
	domain.CategoryNoiseComplaint: {
		"noise", "loud music", "loud party", "party", "shouting",
		"yelling", "screaming", "fireworks", "barking", "bass",
		"construction noise", "revving",
	},
	domain.CategoryFire: {
		"fire", "flames", "smoke", "burning", "blaze", "arson",
		"explosion", "exploded", "house fire", "brush fire", "wildfire",
		"smoke alarm",
	},
	domain.CategoryMedicalEmergency: {
		"medical", "ambulance", "unconscious", "unresponsive", "overdose",
		"seizure", "heart attack", "stroke", "bleeding", "injured",
		"injury", "collapsed", "not breathing", "choking",
	},
	domain.CategoryHazard: {
		"hazard", "pothole", "sinkhole", "downed power line", "power line",
		"gas leak", "flooding", "flooded", "fallen tree", "black ice", "spill",
		"chemical", "exposed wire", "broken glass", "debris",
		"open manhole",
	},
}

// profanityLexicon drives the heuristic toxicity score. Kept coarse on
// purpose; the remote scorer handles nuance when it is reachable.
var profanityLexicon = map[string]struct{}{
	"fuck": {}, "fucking": {}, "fucked": {}, "shit": {}, "shitty": {},
	"bitch": {}, "bastard": {}, "asshole": {}, "damn": {}, "crap": {},
	"dick": {}, "piss": {}, "pissed": {}, "idiot": {}, "moron": {},
	"stupid": {}, "dumbass": {}, "scum": {}, "trash": {}, "loser": {},
}

// highRiskTerms escalate the risk score when present.
var highRiskTerms = []string{
	"gun", "knife", "weapon", "armed", "shooting", "shots fired",
	"stabbing", "hostage", "explosion", "bomb", "kidnap", "abduct",
	"assault", "attack",
}

// urgencyTerms indicate an event in progress.
var urgencyTerms = []string{
	"right now", "happening now", "in progress", "currently",
	"urgent", "emergency", "immediately", "help", "hurry",
}

// deathTerms add a fixed bonus once when any is present.
var deathTerms = []string{
	"dead", "death", "killed", "fatal", "body", "corpse", "murdered",
}

// deEscalationTerms reduce risk; they signal the event has concluded.
var deEscalationTerms = []string{
	"resolved", "left the scene", "calmed down", "no longer",
	"yesterday", "last week", "minor", "false alarm", "all clear",
}
