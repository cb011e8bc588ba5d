package codec

import (
	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/parcel"
)

// TxPowerLevels is the number of transmit power buckets in activity info.
const TxPowerLevels = 5

// ActivityInfo is the modem activity report returned by RequestGetActivityInfo.
type ActivityInfo struct {
	SleepMs int32
	IdleMs  int32
	TxMs    [TxPowerLevels]int32
	RxMs    int32
}

func decodeActivityInfo(r *parcel.Reader) (any, error) {
	var info ActivityInfo
	var err error
	if info.SleepMs, err = r.Int32(); err != nil {
		return nil, err
	}
	if info.IdleMs, err = r.Int32(); err != nil {
		return nil, err
	}
	for i := range info.TxMs {
		if info.TxMs[i], err = r.Int32(); err != nil {
			return nil, err
		}
	}
	if info.RxMs, err = r.Int32(); err != nil {
		return nil, err
	}
	return info, nil
}

// Default returns the table for the codes the transport and CLI rely on.
func Default() *Table {
	t := NewTable()
	t.RegisterCommand(Command{Code: ril.RequestSignalStrength, Name: "SIGNAL_STRENGTH", Decode: Ints})
	t.RegisterCommand(Command{Code: ril.RequestRadioPower, Name: "RADIO_POWER", Decode: Void})
	t.RegisterCommand(Command{Code: ril.RequestBasebandVersion, Name: "BASEBAND_VERSION", Decode: String})
	t.RegisterCommand(Command{
		Code:     ril.RequestGetActivityInfo,
		Name:     "GET_ACTIVITY_INFO",
		Decode:   decodeActivityInfo,
		Blocking: true,
		Fallback: func() any { return ActivityInfo{} },
	})
	t.RegisterEvent(Event{Code: ril.UnsolRadioStateChanged, Name: "UNSOL_RADIO_STATE_CHANGED", Decode: Ints})
	t.RegisterEvent(Event{Code: ril.UnsolNITZTimeReceived, Name: "UNSOL_NITZ_TIME_RECEIVED", Decode: String})
	t.RegisterEvent(Event{Code: ril.UnsolSignalStrength, Name: "UNSOL_SIGNAL_STRENGTH", Decode: Ints})
	t.RegisterEvent(Event{Code: ril.UnsolRILConnected, Name: "UNSOL_RIL_CONNECTED", Decode: Ints})
	return t
}

// ConnectedVersion extracts the protocol version from a decoded connected event.
func ConnectedVersion(v any) (int32, bool) {
	ints, ok := v.([]int32)
	if !ok || len(ints) == 0 {
		return 0, false
	}
	return ints[0], true
}
