package wifi

// QualityToDBm converts a 0-100 signal quality percentage, as reported by
// NetworkManager, into an approximate dBm value.
func QualityToDBm(quality uint8) int {
	if quality > 100 {
		quality = 100
	}
	return int(quality)/2 - 100
}

// DBmToQuality is the inverse of QualityToDBm, clamped to 0-100.
func DBmToQuality(dbm int) uint8 {
	switch {
	case dbm <= -100:
		return 0
	case dbm >= -50:
		return 100
	}
	return uint8(2 * (dbm + 100))
}

// ChannelFromFrequency maps a centre frequency in MHz to its channel number,
// or 0 if the frequency is not a known wifi channel.
func ChannelFromFrequency(mhz uint) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz <= 2472:
		return int(mhz-2407) / 5
	case mhz >= 5160 && mhz <= 5885:
		return int(mhz-5000) / 5
	case mhz >= 5955 && mhz <= 7115:
		return int(mhz-5950) / 5
	}
	return 0
}
