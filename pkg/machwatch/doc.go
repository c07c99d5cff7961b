// Package machwatch classifies machine sensor readings as normal operation
// or impending failure with a pre-trained binary classifier.
//
// Quick start:
//
//	m, err := machwatch.New(machwatch.WithModel("models/edge_model.onnx"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	res, _ := m.Classify(102.4, 1210, 68.1)
//	fmt.Println(res.Failure) // true
//
// Readings are normalized against the training-time bounds before they
// reach the model. Pass math.NaN() for a sensor that did not report; it is
// replaced with the bound minimum.
//
// A Monitor is safe for concurrent use. Create once, reuse across requests.
package machwatch
