package apac_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	"github.com/adamwoolhether/apac"
	"github.com/adamwoolhether/apac/client"
	"github.com/adamwoolhether/apac/client/signer"
)

func ExampleNew() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `<ItemLookupResponse><Items><Item><ASIN>B00008OE6I</ASIN></Item></Items></ItemLookupResponse>`)
	}))
	defer ts.Close()

	u, _ := url.Parse(ts.URL)

	h, err := apac.New(client.Config{
		AWSID:          "AKIDEXAMPLE",
		AWSSecret:      "secret",
		AssocID:        "tag-20",
		Endpoint:       u.Host,
		RequestTimeout: 5 * time.Second,
	})
	if err != nil {
		fmt.Println("build error:", err)
		return
	}

	resp, err := h.Execute(context.Background(), "ItemLookup", signer.Params{"ItemId": "B00008OE6I"}, nil)
	if err != nil {
		fmt.Println("execute error:", err)
		return
	}

	tree := resp.Result.(map[string]any)
	item := tree["ItemLookupResponse"].(map[string]any)["Items"].(map[string]any)["Item"].(map[string]any)
	fmt.Println(item["ASIN"])
	// Output: B00008OE6I
}
