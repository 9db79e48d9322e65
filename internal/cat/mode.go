package cat

import (
	"errors"
	"fmt"

	"github.com/openx6100/catd/internal/domain"
)

// Operating mode codes from the Icom CI-V command set.
const (
	wireModeLSB byte = 0x00
	wireModeUSB byte = 0x01
	wireModeAM  byte = 0x02
	wireModeCW  byte = 0x03
	wireModeNFM byte = 0x05
	wireModeCWR byte = 0x07
)

var ErrUnknownMode = errors.New("unknown mode code")

// WireToMode maps a wire mode code to the rig's operating mode. The data
// flag selects the digital variant of the sideband modes; it is ignored
// for modes that have none.
func WireToMode(code byte, data bool) (domain.Mode, error) {
	switch code {
	case wireModeLSB:
		if data {
			return domain.ModeLSBDig, nil
		}

		return domain.ModeLSB, nil
	case wireModeUSB:
		if data {
			return domain.ModeUSBDig, nil
		}

		return domain.ModeUSB, nil
	case wireModeAM:
		return domain.ModeAM, nil
	case wireModeCW:
		return domain.ModeCW, nil
	case wireModeNFM:
		return domain.ModeNFM, nil
	case wireModeCWR:
		return domain.ModeCWR, nil
	}

	return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownMode, code)
}

// ModeToWire collapses an operating mode to its wire code. Digital
// variants share the code of their underlying sideband.
func ModeToWire(m domain.Mode) (byte, error) {
	switch m {
	case domain.ModeLSB, domain.ModeLSBDig:
		return wireModeLSB, nil
	case domain.ModeUSB, domain.ModeUSBDig:
		return wireModeUSB, nil
	case domain.ModeAM:
		return wireModeAM, nil
	case domain.ModeCW:
		return wireModeCW, nil
	case domain.ModeNFM:
		return wireModeNFM, nil
	case domain.ModeCWR:
		return wireModeCWR, nil
	}

	return 0, fmt.Errorf("%w: %v", ErrUnknownMode, m)
}
