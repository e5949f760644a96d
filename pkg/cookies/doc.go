// Package cookies provides the document cookie string the cookie storage
// adapter writes to, plus helpers that read and write single cookies on it.
//
// A Document behaves like document.cookie: reading returns every visible
// cookie as "name=value; name2=value2", and writing a Set-Cookie style line
// creates, replaces or (with a past expiry) removes one cookie.
//
//	doc, _ := cookies.NewJarDocument("https://example.com/")
//	c := cookies.New(doc)
//	c.SetItem("theme", `"dark"`, cookies.Options{Expires: cookies.Forever, Path: "/"})
//	v, ok := c.GetItem("theme") // `"dark"`, true
//
// Names and values are percent-encoded with Encode, the same escaping
// encodeURIComponent applies, so any text survives the cookie wire format.
package cookies
