package platform

type WhatsApp struct{}

func init() {
	Register(&WhatsApp{})
}

func (p *WhatsApp) GetName() string {
	return "whatsapp"
}

func (p *WhatsApp) GetMaxDimensions() (width, height int) {
	return 640, 360
}

func (p *WhatsApp) GetMaxFileSize() int64 {
	return 16 * 1024 * 1024 // 16MB
}

func (p *WhatsApp) GetOutputSuffix() string {
	return "_whatsapp"
}

func (p *WhatsApp) GetVideoCodec() string {
	return "libx264"
}

func (p *WhatsApp) GetVideoPreset() string {
	return "veryfast"
}

func (p *WhatsApp) GetAudioCodec() string {
	return "aac"
}

func (p *WhatsApp) GetAudioBitrateKbps() int {
	return 128
}

func (p *WhatsApp) GetOutputFormat() string {
	return "mp4"
}
