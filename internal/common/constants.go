package common

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvModelDir       = "MODEL_DIR"
	EnvKMeansModel    = "KMEANS_MODEL"
	EnvPCAModel       = "PCA_MODEL"
	EnvForestModel    = "FOREST_MODEL"
	EnvCNNModel       = "CNN_MODEL"
	EnvONNXRuntimeLib = "ONNX_RUNTIME_LIB"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvDataPath       = "DATA_PATH"
	EnvMetricsFile    = "METRICS_FILE"
)

// Model artifact defaults, resolved relative to the model directory
const (
	DefaultKMeansModel = "kmeans_model.json"
	DefaultPCAModel    = "pca_model.json"
	DefaultForestModel = "random_forest_moisture_model.json"
	DefaultCNNModel    = "piperine_prediction_cnn_model.onnx"
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "json"
)

// Pipeline constants
const (
	// MaskBand is the spectral band fed to the clustering model.
	MaskBand = 140
	// ForegroundCluster is the k-means label assumed to be pepper. The
	// label order comes from training and is not verified here.
	ForegroundCluster = 0
	// DriftResidualWarn is the PCA residual ratio above which a spectrum
	// is logged as out of distribution.
	DriftResidualWarn = 0.5
)

// Model names used in load errors, logs and metric labels
const (
	ModelKMeans = "KMeans"
	ModelPCA    = "PCA"
	ModelForest = "Random Forest"
	ModelCNN    = "CNN"
)

// Common error messages
const (
	ErrMsgInvalidArgs = "Invalid number of arguments"
)
