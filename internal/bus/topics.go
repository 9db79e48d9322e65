package bus

const (
	TopicLinkStatus  = "link.status"
	TopicRadioState  = "radio.state"
	TopicBandChange  = "radio.band"
	TopicRawFrameIn  = "cat.frame.in"
	TopicRawFrameOut = "cat.frame.out"
)
