// Package b64 implements standard base64 encode/decode with the lax,
// table-lookup decode semantics of
// original_source/src/WarpedDrive/base64.cpp: any byte outside the
// alphabet decodes as zero rather than raising an error. This matters for
// Core Storage's embedded plist <data> blobs, which this tool only ever
// reads (never validates) off disk.
package b64

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var reverse [128]byte

func init() {
	for i, c := range alphabet {
		reverse[c] = byte(i)
	}
}

// Encode returns the standard base64 encoding of data, '='-padded.
func Encode(data []byte) string {
	out := make([]byte, 0, (len(data)+2)/3*4)
	for i := 0; i < len(data); i += 3 {
		out = append(out, alphabet[data[i]>>2])
		switch {
		case i+2 < len(data):
			out = append(out,
				alphabet[((data[i]&0x03)<<4)|(data[i+1]>>4)],
				alphabet[((data[i+1]&0x0F)<<2)|(data[i+2]>>6)],
				alphabet[data[i+2]&0x3F])
		case i+1 < len(data):
			out = append(out,
				alphabet[((data[i]&0x03)<<4)|(data[i+1]>>4)],
				alphabet[(data[i+1]&0x0F)<<2],
				'=')
		default:
			out = append(out, alphabet[(data[i]&0x03)<<4], '=', '=')
		}
	}
	return string(out)
}

// Decode decodes s, a standard base64 string (optionally '='-padded).
// Characters outside the alphabet decode as zero rather than erroring,
// matching the original tool's lookup-table behavior.
func Decode(s string) []byte {
	n := len(s)
	for n > 0 && s[n-1] == '=' {
		n--
	}
	s = s[:n]

	rev := func(c byte) byte {
		if c >= 128 {
			return 0
		}
		return reverse[c]
	}

	out := make([]byte, 0, n*3/4)
	for i := 0; i < n; i += 4 {
		c0 := rev(s[i])
		var c1, c2, c3 byte
		if i+1 < n {
			c1 = rev(s[i+1])
		}
		out = append(out, (c0<<2)|(c1>>4))

		if i+2 < n {
			c2 = rev(s[i+2])
			out = append(out, (c1<<4)|(c2>>2))
		}
		if i+3 < n {
			c3 = rev(s[i+3])
			out = append(out, (c2<<6)|c3)
		}
	}
	return out
}
