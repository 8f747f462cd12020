package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen/internal/crawl"
	"github.com/sells-group/leadgen/internal/model"
)

func TestFlags(t *testing.T) {
	tests := []struct {
		name string
		res  crawl.Result
		want []string
	}{
		{
			name: "bare custom site",
			res:  crawl.Result{Platform: "custom"},
			want: []string{FlagNoEmail, FlagNoPhone, FlagNoSSL, FlagNoSocials},
		},
		{
			name: "well equipped site",
			res: crawl.Result{
				Platform: "custom",
				Emails:   []string{"a@b.example"},
				Phones:   []string{"(512) 555-0100"},
				HasSSL:   true,
				Socials:  model.Socials{Facebook: "f", Instagram: "i"},
			},
			want: []string{},
		},
		{
			name: "site builder behind cloudflare",
			res: crawl.Result{
				Platform:  "squarespace",
				Emails:    []string{"a@b.example"},
				HasSSL:    true,
				Socials:   model.Socials{Yelp: "y"},
				BlockType: crawl.BlockCloudflare,
			},
			want: []string{"platform:squarespace", FlagNoPhone, FlagMinimalSocials, "bot_protection:cloudflare"},
		},
		{
			name: "parked domain",
			res:  crawl.Result{Platform: "custom", HasSSL: true, BlockType: crawl.BlockParked},
			want: []string{FlagNoEmail, FlagNoPhone, FlagNoSocials, FlagParkedDomain},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Flags(&tt.res))
		})
	}
}
