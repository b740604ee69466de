package testutils

const (
	basicFont = "\x72\xb5\x4a\x86" // PSF2 magic
)

// BootExecutable returns a deterministic stand in for a PE32+ boot
// executable of size bytes
func BootExecutable(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}
	if size >= 2 {
		data[0], data[1] = 'M', 'Z'
	}
	return data
}

// Font returns a deterministic stand in for a PSF2 console font
func Font(size int) []byte {
	data := make([]byte, size)
	copy(data, basicFont)
	for i := len(basicFont); i < size; i++ {
		data[i] = byte(i % 13)
	}
	return data
}
