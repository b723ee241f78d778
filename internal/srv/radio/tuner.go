package radio

// Dial mapping. The raw potentiometer domain is divided into twelve equal
// contiguous slots, one per station. Within the band, a station's volume is
// 1.0 at its own slot center and falls linearly to 0.0 at the adjacent
// slot's center, so two neighbours crossfade with a combined level of 1.0
// at the exact boundary between their slots.

// DefaultAdcSpan is the size of the raw dial domain for a 12-bit ADC.
const DefaultAdcSpan = 4096

// TargetSlot returns the index of the station whose slot contains the dial
// value. Out-of-range values clamp to the outermost slots.
func TargetSlot(adcValue, adcSpan int) int {
	if adcValue < 0 {
		return 0
	}
	slot := adcValue * StationsPerBand / adcSpan
	if slot >= StationsPerBand {
		return StationsPerBand - 1
	}
	return slot
}

// SlotVolume returns the crossfade level of station index for the given
// dial value, in [0,1]. The outermost stations hold full volume past their
// own centers so the band does not fade out at its ends.
func SlotVolume(adcValue, adcSpan, index int) float64 {
	slotWidth := float64(adcSpan) / StationsPerBand
	center := (float64(index) + 0.5) * slotWidth

	distance := float64(adcValue) - center
	if distance < 0 {
		distance = -distance
	}
	if index == 0 && float64(adcValue) < center {
		return 1.0
	}
	if index == StationsPerBand-1 && float64(adcValue) > center {
		return 1.0
	}

	volume := 1.0 - distance/slotWidth
	if volume < 0 {
		return 0
	}
	return volume
}
