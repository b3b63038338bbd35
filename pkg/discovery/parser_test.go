package discovery

import "testing"

const searchFixture = `
<html><body>
<div data-component-type="s-search-result" data-asin="B0AAAA1111">
  <a href="/dp/B0AAAA1111/ref=sr_1_1?keywords=earbuds"><img src="https://m.media.example/I/61abc._AC_UY218_.jpg"></a>
  <h2><a><span>Wireless Earbuds with Charging Case</span></a></h2>
  <div class="a-row a-color-secondary">Bluetooth 5.3, 40h playtime</div>
</div>
<div data-component-type="s-search-result" data-asin="B0BBBB2222">
  <a href="/gp/product/B0BBBB2222?pf_rd=x"><img src="https://m.media.example/I/71xyz._AC_UY218_.jpg"></a>
  <h2><a><span>Open Ear Clip Headphones</span></a></h2>
</div>
<div data-component-type="s-search-result" data-asin="">
  <a href="/deals/today"><span>Sponsored tile</span></a>
</div>
</body></html>`

func TestParseSearchItems(t *testing.T) {
	items := ParseSearchItems("https://www.amazon.com", searchFixture)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	first := items[0]
	if first.ASIN != "B0AAAA1111" {
		t.Fatalf("asin %q", first.ASIN)
	}
	if first.URL != "https://www.amazon.com/dp/B0AAAA1111" {
		t.Fatalf("url %q", first.URL)
	}
	if first.Title != "Wireless Earbuds with Charging Case" {
		t.Fatalf("title %q", first.Title)
	}
	if first.Snippet != "Bluetooth 5.3, 40h playtime" {
		t.Fatalf("snippet %q", first.Snippet)
	}
	if first.ImageURL != "https://m.media.example/I/61abc.jpg" {
		t.Fatalf("image %q", first.ImageURL)
	}
	if items[1].ASIN != "B0BBBB2222" {
		t.Fatalf("second asin %q", items[1].ASIN)
	}
}

func TestParseASIN(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://www.amazon.com/dp/B0AAAA1111?tag=x", "B0AAAA1111"},
		{"https://www.amazon.com/gp/product/b0bbbb2222/ref=x", "B0BBBB2222"},
		{"https://www.amazon.com/deals/today", ""},
	}
	for _, tc := range tests {
		if got := ParseASIN(tc.in); got != tc.want {
			t.Fatalf("ParseASIN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractKeyword(t *testing.T) {
	tests := []struct{ in, want string }{
		{"wireless earbuds", "wireless earbuds"},
		{"https://www.amazon.com/s?k=robot+vacuum&page=2", "robot vacuum"},
		{"https://www.amazon.com/s?field-keywords=smart+watch", "smart watch"},
		{"  spaced   keyword  ", "spaced keyword"},
	}
	for _, tc := range tests {
		if got := ExtractKeyword(tc.in); got != tc.want {
			t.Fatalf("ExtractKeyword(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSearchURL(t *testing.T) {
	got := SearchURL("https://www.amazon.com/", "robot vacuum", 3)
	want := "https://www.amazon.com/s?k=robot+vacuum&page=3"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
