package feature

// builtin lists every identifier the extraction engine can compute, as
// (identifier, engine class, engine feature name). Order is the listing order.
var builtin = [][3]string{
	{"firstorder/Energy", "firstorder", "Energy"},
	{"firstorder/Entropy", "firstorder", "Entropy"},
	{"firstorder/IQR", "firstorder", "InterquartileRange"},
	{"firstorder/Kurtosis", "firstorder", "Kurtosis"},
	{"firstorder/MAD", "firstorder", "MeanAbsoluteDeviation"},
	{"firstorder/Mean", "firstorder", "Mean"},
	{"firstorder/Median", "firstorder", "Median"},
	{"firstorder/Max", "firstorder", "Maximum"},
	{"firstorder/Min", "firstorder", "Minimum"},
	{"firstorder/Range", "firstorder", "Range"},
	{"firstorder/RMAD", "firstorder", "RobustMeanAbsoluteDeviation"},
	{"firstorder/Std", "firstorder", "StandardDeviation"},
	{"firstorder/Skewness", "firstorder", "Skewness"},
	{"firstorder/Uniformity", "firstorder", "Uniformity"},
	{"glcm/Acorr", "glcm", "Autocorrelation"},
	{"glcm/JointAvg", "glcm", "JointAverage"},
	{"glcm/ClProm", "glcm", "ClusterProminence"},
	{"glcm/ClShade", "glcm", "ClusterShade"},
	{"glcm/ClTen", "glcm", "ClusterTendency"},
	{"glcm/Contrast", "glcm", "Contrast"},
	{"glcm/Correlation", "glcm", "Correlation"},
	{"glcm/DiffAvg", "glcm", "DifferenceAverage"},
	{"glcm/DiffEnt", "glcm", "DifferenceEntropy"},
	{"glcm/DiffVar", "glcm", "DifferenceVariance"},
	{"glcm/JointEnergy", "glcm", "JointEnergy"},
	{"glcm/JointEntropy", "glcm", "JointEntropy"},
	{"glcm/IMC1", "glcm", "Imc1"},
	{"glcm/IMC2", "glcm", "Imc2"},
	{"glcm/MCC", "glcm", "MCC"},
	{"glcm/IDMN", "glcm", "Idmn"},
	{"glcm/ID", "glcm", "Id"},
	{"glcm/IDN", "glcm", "Idn"},
	{"glcm/InvVar", "glcm", "InverseVariance"},
	{"glcm/IDM", "glcm", "Idm"},
	{"glcm/MaxProb", "glcm", "MaximumProbability"},
	{"glcm/SumAvg", "glcm", "SumAverage"},
	{"glcm/SumEnt", "glcm", "SumEntropy"},
	{"glcm/SumSquares", "glcm", "SumSquares"},
	{"gldm/SDE", "gldm", "SmallDependenceEmphasis"},
	{"gldm/LDE", "gldm", "LargeDependenceEmphasis"},
	{"gldm/GLN", "gldm", "GrayLevelNonUniformity"},
	{"gldm/DN", "gldm", "DependenceNonUniformity"},
	{"gldm/DNN", "gldm", "DependenceNonUniformityNormalized"},
	{"gldm/GLV", "gldm", "GrayLevelVariance"},
	{"gldm/DV", "gldm", "DependenceVariance"},
	{"gldm/DE", "gldm", "DependenceEntropy"},
	{"gldm/LGLE", "gldm", "LowGrayLevelEmphasis"},
	{"gldm/HGLE", "gldm", "HighGrayLevelEmphasis"},
	{"gldm/SDLGLE", "gldm", "SmallDependenceLowGrayLevelEmphasis"},
	{"gldm/SDHGLE", "gldm", "SmallDependenceHighGrayLevelEmphasis"},
	{"gldm/LDLGLE", "gldm", "LargeDependenceLowGrayLevelEmphasis"},
	{"gldm/LDHGLE", "gldm", "LargeDependenceHighGrayLevelEmphasis"},
	{"glrlm/SRE", "glrlm", "ShortRunEmphasis"},
	{"glrlm/LRE", "glrlm", "LongRunEmphasis"},
	{"glrlm/GLN", "glrlm", "GrayLevelNonUniformity"},
	{"glrlm/GLNN", "glrlm", "GrayLevelNonUniformityNormalized"},
	{"glrlm/RLN", "glrlm", "RunLengthNonUniformity"},
	{"glrlm/RLNN", "glrlm", "RunLengthNonUniformityNormalized"},
	{"glrlm/RP", "glrlm", "RunPercentage"},
	{"glrlm/GLV", "glrlm", "GrayLevelVariance"},
	{"glrlm/RV", "glrlm", "RunVariance"},
	{"glrlm/RE", "glrlm", "RunEntropy"},
	{"glrlm/LGLRE", "glrlm", "LowGrayLevelRunEmphasis"},
	{"glrlm/HGLRE", "glrlm", "HighGrayLevelRunEmphasis"},
	{"glrlm/SRLGLE", "glrlm", "ShortRunLowGrayLevelEmphasis"},
	{"glrlm/SRHGLE", "glrlm", "ShortRunHighGrayLevelEmphasis"},
	{"glrlm/LRLGLE", "glrlm", "LongRunLowGrayLevelEmphasis"},
	{"glrlm/LRHGLE", "glrlm", "LongRunHighGrayLevelEmphasis"},
	{"glszm/SAE", "glszm", "SmallAreaEmphasis"},
	{"glszm/LAE", "glszm", "LargeAreaEmphasis"},
	{"glszm/GLN", "glszm", "GrayLevelNonUniformity"},
	{"glszm/GLNN", "glszm", "GrayLevelNonUniformityNormalized"},
	{"glszm/SZN", "glszm", "SizeZoneNonUniformity"},
	{"glszm/SZNN", "glszm", "SizeZoneNonUniformityNormalized"},
	{"glszm/ZP", "glszm", "ZonePercentage"},
	{"glszm/GLV", "glszm", "GrayLevelVariance"},
	{"glszm/ZV", "glszm", "ZoneVariance"},
	{"glszm/ZE", "glszm", "ZoneEntropy"},
	{"glszm/LGLZE", "glszm", "LowGrayLevelZoneEmphasis"},
	{"glszm/HGLZE", "glszm", "HighGrayLevelZoneEmphasis"},
	{"glszm/SALGLE", "glszm", "SmallAreaLowGrayLevelEmphasis"},
	{"glszm/SAHGLE", "glszm", "SmallAreaHighGrayLevelEmphasis"},
	{"glszm/LALGLE", "glszm", "LargeAreaLowGrayLevelEmphasis"},
	{"glszm/LAHGLE", "glszm", "LargeAreaHighGrayLevelEmphasis"},
	{"ngtdm/Coarseness", "ngtdm", "Coarseness"},
	{"ngtdm/Contrast", "ngtdm", "Contrast"},
	{"ngtdm/Busyness", "ngtdm", "Busyness"},
	{"ngtdm/Complexity", "ngtdm", "Complexity"},
	{"ngtdm/Strength", "ngtdm", "Strength"},
	{"shape3D/MaxAxialDiameter", "shape", "Maximum2DDiameterSlice"},
}
