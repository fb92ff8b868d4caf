package advisory

import "coach/classify"

var degradedTips = []string{
	"Adjust your position so your whole body is in view",
	"Step back a little so the camera can see you",
	"Check your lighting and face the camera",
	"Reset your stance and hold still for a moment",
}

var classTips = map[classify.Class][]string{
	classify.Explosive: {
		"Drive hard through the floor and land soft",
		"Explode up, then reset before the next rep",
		"Stay tight through your core on every burst",
		"Great power, keep your knees tracking your toes",
	},
	classify.Rhythmic: {
		"Nice rhythm, keep that tempo steady",
		"Breathe with the movement, stay smooth",
		"Keep the pace even, don't rush the reps",
	},
	classify.Sustained: {
		"Hold it steady, keep breathing",
		"Stay strong, shoulders down and back",
		"Keep the tension, you're almost there",
	},
	classify.Controlled: {
		"Good control, own every inch of the movement",
		"Slow and steady, squeeze at the top",
		"Keep it controlled and stay balanced",
	},
}

var stateTips = map[classify.State][]string{
	classify.Idle: {
		"Get set and start when you're ready",
		"Take a breath and set your stance",
		"Shake it out, then let's go again",
	},
	classify.Moving: {
		"Good start, build the intensity",
		"Find your groove and pick up the pace",
		"Warm up through the full range of motion",
	},
	classify.Active: {
		"Great work, keep pushing",
		"Strong effort, hold your form",
		"You're in the zone, stay focused",
		"Keep it up, breathe through it",
	},
}

// candidates picks the fallback list for a context: class first, then state.
func candidates(tc TipContext) []string {
	if tc.degraded() {
		return degradedTips
	}
	if tips, ok := classTips[tc.Class]; ok {
		return tips
	}
	return stateTips[tc.State]
}
